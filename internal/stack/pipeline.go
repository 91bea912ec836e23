package stack

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codepipeline"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/kms"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const beanstalkAdminPolicyArn = "arn:aws:iam::aws:policy/AdministratorAccess-AWSElasticBeanstalk"

type PipelineStackArgs struct {
	Config *Config
	Repo   *RepoStack
	// Target is nil when the deploy action points at an environment managed elsewhere.
	Target *BeanstalkTarget
}

type PipelineStack struct {
	pipeline *codepipeline.Pipeline
	build    *buildProject
	store    *artifactStore
	stages   []Stage
}

type artifactStore struct {
	bucket *s3.BucketV2
	key    *kms.Key
}

// newArtifactStore keeps the key alongside the bucket under a retain policy so retained
// artifacts stay readable.
func newArtifactStore(ctx *pulumi.Context, policy RemovalPolicy) (*artifactStore, error) {
	var err error
	store := &artifactStore{}
	store.key, err = kms.NewKey(ctx, "artifacts-key", &kms.KeyArgs{
		Description:          pulumi.StringPtr("pipeline artifact encryption"),
		EnableKeyRotation:    pulumi.BoolPtr(true),
		DeletionWindowInDays: pulumi.IntPtr(7),
	}, policy.options()...)
	if err != nil {
		return nil, fmt.Errorf("Error creating artifact key: %w", err)
	}
	store.bucket, err = s3.NewBucketV2(ctx, "artifacts-bucket", &s3.BucketV2Args{
		ForceDestroy: pulumi.BoolPtr(policy.forceDelete()),
	}, policy.options()...)
	if err != nil {
		return nil, fmt.Errorf("Error creating artifact bucket: %w", err)
	}
	return store, nil
}

func (s *artifactStore) readWriteStatement() PolicyStatement {
	return PolicyStatement{
		Actions: []string{
			"s3:GetObject*",
			"s3:GetBucket*",
			"s3:List*",
			"s3:PutObject",
			"s3:PutObjectAcl",
			"s3:DeleteObject*",
			"s3:Abort*",
		},
		Resources: pulumi.StringArray{s.bucket.Arn, pulumi.Sprintf("%s/*", s.bucket.Arn)},
	}
}

func (s *artifactStore) keyStatement() PolicyStatement {
	return PolicyStatement{
		Actions: []string{
			"kms:Decrypt",
			"kms:DescribeKey",
			"kms:Encrypt",
			"kms:ReEncrypt*",
			"kms:GenerateDataKey*",
		},
		Resources: pulumi.StringArray{s.key.Arn},
	}
}

func NewPipelineStack(ctx *pulumi.Context, args PipelineStackArgs) (*PipelineStack, error) {
	var err error
	ps := &PipelineStack{}
	cfg := args.Config

	ps.store, err = newArtifactStore(ctx, cfg.ArtifactRemovalPolicy)
	if err != nil {
		return nil, err
	}

	ps.build, err = newBuildProject(ctx, buildProjectArgs{
		config:        cfg.Build,
		containerName: cfg.ContainerName,
		repo:          args.Repo,
		store:         ps.store,
	})
	if err != nil {
		return nil, err
	}

	applicationName := pulumi.String(cfg.ApplicationName).ToStringOutput()
	environmentName := pulumi.String(cfg.EnvironmentName).ToStringOutput()
	opts := []pulumi.ResourceOption{}
	if args.Target != nil {
		applicationName = args.Target.ApplicationName()
		if env := args.Target.Environment(); env != nil {
			environmentName = env.Name
			opts = append(opts, pulumi.DependsOn([]pulumi.Resource{env}))
		}
	}

	ps.stages = []Stage{
		{
			Name:    "Source",
			Actions: []Action{codeCommitSourceAction(args.Repo.GitRepo().RepositoryName, cfg.Branch, cfg.Trigger == TriggerPoll, SourceOutput)},
		},
		{
			Name:    "Build",
			Actions: []Action{codeBuildAction(ps.build.project.Name, SourceOutput, BuildOutput)},
		},
		{
			Name:    "Approve",
			Actions: []Action{manualApprovalAction()},
		},
		{
			Name:    "Deploy",
			Actions: []Action{beanstalkDeployAction(applicationName, environmentName, BuildOutput)},
		},
	}

	role, err := newServiceRole(ctx, "pipeline-role", "codepipeline.amazonaws.com", beanstalkAdminPolicyArn)
	if err != nil {
		return nil, err
	}
	rolePolicy, err := attachInlinePolicy(ctx, "pipeline-default-policy", role,
		ps.store.readWriteStatement(),
		ps.store.keyStatement(),
		PolicyStatement{
			Actions: []string{
				"codecommit:GetBranch",
				"codecommit:GetCommit",
				"codecommit:UploadArchive",
				"codecommit:GetUploadArchiveStatus",
				"codecommit:CancelUploadArchive",
			},
			Resources: pulumi.StringArray{args.Repo.GitRepo().Arn},
		},
		PolicyStatement{
			Actions: []string{
				"codebuild:BatchGetBuilds",
				"codebuild:StartBuild",
				"codebuild:StopBuild",
			},
			Resources: pulumi.StringArray{ps.build.project.Arn},
		},
	)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pulumi.DependsOn([]pulumi.Resource{rolePolicy}))

	ps.pipeline, err = codepipeline.NewPipeline(ctx, "EBServicePipeline", &codepipeline.PipelineArgs{
		Name:    pulumi.StringPtr(cfg.PipelineName),
		RoleArn: role.Arn,
		ArtifactStores: codepipeline.PipelineArtifactStoreArray{
			codepipeline.PipelineArtifactStoreArgs{
				Type:     pulumi.String("S3"),
				Location: ps.store.bucket.Bucket,
				EncryptionKey: &codepipeline.PipelineArtifactStoreEncryptionKeyArgs{
					Id:   ps.store.key.Arn,
					Type: pulumi.String("KMS"),
				},
			},
		},
		Stages: stagesArgs(ps.stages),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("Error creating pipeline: %w", err)
	}

	if cfg.Trigger == TriggerEvents {
		if err := ps.addSourceTrigger(ctx, args.Repo, cfg.Branch); err != nil {
			return nil, err
		}
	}

	return ps, nil
}

// addSourceTrigger starts the pipeline whenever the branch reference changes.
func (p *PipelineStack) addSourceTrigger(ctx *pulumi.Context, repo *RepoStack, branch string) error {
	pattern := pulumi.JSONMarshal(map[string]interface{}{
		"source":      []string{"aws.codecommit"},
		"detail-type": []string{"CodeCommit Repository State Change"},
		"resources":   pulumi.StringArray{repo.GitRepo().Arn},
		"detail": map[string]interface{}{
			"event":         []string{"referenceCreated", "referenceUpdated"},
			"referenceType": []string{"branch"},
			"referenceName": []string{branch},
		},
	})
	rule, err := cloudwatch.NewEventRule(ctx, "source-trigger", &cloudwatch.EventRuleArgs{
		Description:  pulumi.StringPtr("Starts the pipeline on pushes to " + branch),
		EventPattern: pattern,
	})
	if err != nil {
		return fmt.Errorf("Error creating source trigger rule: %w", err)
	}

	role, err := newServiceRole(ctx, "source-trigger-role", "events.amazonaws.com")
	if err != nil {
		return err
	}
	if _, err := attachInlinePolicy(ctx, "source-trigger-policy", role, PolicyStatement{
		Actions:   []string{"codepipeline:StartPipelineExecution"},
		Resources: pulumi.StringArray{p.pipeline.Arn},
	}); err != nil {
		return err
	}

	_, err = cloudwatch.NewEventTarget(ctx, "source-trigger-target", &cloudwatch.EventTargetArgs{
		Rule:    rule.Name,
		Arn:     p.pipeline.Arn,
		RoleArn: role.Arn,
	})
	if err != nil {
		return fmt.Errorf("Error creating source trigger target: %w", err)
	}
	return nil
}

func (p *PipelineStack) Pipeline() *codepipeline.Pipeline {
	return p.pipeline
}

// Stages returns the declared stages in execution order.
func (p *PipelineStack) Stages() []Stage {
	return p.stages
}
