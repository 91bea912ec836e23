// Package stack declares the source repository, image registry, Elastic Beanstalk target and
// delivery pipeline of the eb-pipeline project.
package stack

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type Stack struct {
	Config   *Config
	Repo     *RepoStack
	Target   *BeanstalkTarget
	Pipeline *PipelineStack
}

// Program is the pulumi.RunFunc shared by the project entry point and the CLI.
func Program(ctx *pulumi.Context) error {
	_, err := New(ctx)
	return err
}

func New(ctx *pulumi.Context) (*Stack, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	s := &Stack{Config: cfg}

	s.Repo, err = NewRepoStack(ctx, RepoStackArgs{
		RepositoryName: cfg.RepositoryName,
	})
	if err != nil {
		return nil, err
	}

	s.Target, err = NewBeanstalkTarget(ctx, BeanstalkTargetArgs{
		Config: cfg,
		Repo:   s.Repo,
	})
	if err != nil {
		return nil, err
	}

	s.Pipeline, err = NewPipelineStack(ctx, PipelineStackArgs{
		Config: cfg,
		Repo:   s.Repo,
		Target: s.Target,
	})
	if err != nil {
		return nil, err
	}

	ctx.Export("repositoryCloneUrlHttp", s.Repo.GitRepo().CloneUrlHttp)
	ctx.Export("registryUrl", s.Repo.EcrRepo().RepositoryUrl)
	ctx.Export("pipelineName", s.Pipeline.Pipeline().Name)
	ctx.Export("applicationName", s.Target.ApplicationName())
	if env := s.Target.Environment(); env != nil {
		ctx.Export("environmentName", env.Name)
		ctx.Export("environmentUrl", env.EndpointUrl)
		ctx.Export("versionLabel", pulumi.String(s.Target.VersionLabel()))
	} else {
		ctx.Export("environmentName", pulumi.String(cfg.EnvironmentName))
	}

	ctx.Log.Info(fmt.Sprintf("declared pipeline %s for repository %s", cfg.PipelineName, s.Repo.Name()), nil)
	return s, nil
}
