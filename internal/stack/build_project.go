package stack

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codebuild"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

type buildProjectArgs struct {
	config        BuildConfig
	containerName string
	repo          *RepoStack
	store         *artifactStore
}

type buildProject struct {
	project *codebuild.Project
	role    *iam.Role
	spec    BuildSpec
}

func newBuildProject(ctx *pulumi.Context, args buildProjectArgs) (*buildProject, error) {
	var err error
	bp := &buildProject{}
	cfg := args.config

	bp.role, err = newServiceRole(ctx, "build-role", "codebuild.amazonaws.com")
	if err != nil {
		return nil, err
	}

	logGroup, err := cloudwatch.NewLogGroup(ctx, "build-log-group", &cloudwatch.LogGroupArgs{
		RetentionInDays: pulumi.IntPtr(cfg.LogRetentionDays),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating build log group: %w", err)
	}

	_, err = attachInlinePolicy(ctx, "build-default-policy", bp.role,
		PolicyStatement{
			Actions:   []string{"logs:CreateLogStream", "logs:PutLogEvents"},
			Resources: pulumi.StringArray{logGroup.Arn, pulumi.Sprintf("%s:*", logGroup.Arn)},
		},
		args.store.readWriteStatement(),
		args.store.keyStatement(),
	)
	if err != nil {
		return nil, err
	}

	var envVars codebuild.ProjectEnvironmentEnvironmentVariableArray
	switch cfg.Mode {
	case BuildModeDocker:
		bp.spec = DockerBuildSpec(cfg.DockerfileName, cfg.AppPath, cfg.RubyVersion)
		envVars = codebuild.ProjectEnvironmentEnvironmentVariableArray{
			codebuild.ProjectEnvironmentEnvironmentVariableArgs{
				Name:  pulumi.String("ECR_REPO_URI"),
				Value: args.repo.EcrRepo().RepositoryUrl,
			},
			codebuild.ProjectEnvironmentEnvironmentVariableArgs{
				Name:  pulumi.String("CONTAINER_NAME"),
				Value: pulumi.String(args.containerName),
			},
			codebuild.ProjectEnvironmentEnvironmentVariableArgs{
				Name:  pulumi.String("APP_PATH"),
				Value: pulumi.String(cfg.AppPath),
			},
		}
		if err := args.repo.GrantPullPush(ctx, "build-registry-policy", bp.role); err != nil {
			return nil, err
		}
		if _, err := attachInlinePolicy(ctx, "build-policy", bp.role, ecrReadStatement()); err != nil {
			return nil, err
		}
	default:
		bp.spec = BundleBuildSpec(cfg.RubyVersion)
	}

	buildspec, err := bp.spec.Render()
	if err != nil {
		return nil, err
	}

	environment := codebuild.ProjectEnvironmentArgs{
		Type:           pulumi.String("LINUX_CONTAINER"),
		Image:          pulumi.String(cfg.Image),
		ComputeType:    pulumi.String(cfg.ComputeType),
		PrivilegedMode: pulumi.BoolPtr(cfg.Privileged),
	}
	if len(envVars) > 0 {
		environment.EnvironmentVariables = envVars
	}

	bp.project, err = codebuild.NewProject(ctx, cfg.ProjectName, &codebuild.ProjectArgs{
		Name:          pulumi.StringPtr(cfg.ProjectName),
		ServiceRole:   bp.role.Arn,
		EncryptionKey: args.store.key.Arn,
		Environment:   environment,
		Source: codebuild.ProjectSourceArgs{
			Type:      pulumi.String("CODEPIPELINE"),
			Buildspec: pulumi.StringPtr(buildspec),
		},
		Artifacts: codebuild.ProjectArtifactsArgs{
			Type: pulumi.String("CODEPIPELINE"),
		},
		LogsConfig: &codebuild.ProjectLogsConfigArgs{
			CloudwatchLogs: &codebuild.ProjectLogsConfigCloudwatchLogsArgs{
				GroupName: logGroup.Name,
				Status:    pulumi.StringPtr("ENABLED"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating build project: %w", err)
	}

	ctx.Log.Debug(fmt.Sprintf("build project %s uses %s mode", cfg.ProjectName, cfg.Mode), nil)
	return bp, nil
}
