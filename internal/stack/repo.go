package stack

import (
	"fmt"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codecommit"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// RemovalPolicy controls what happens to a resource once its declaration is removed.
type RemovalPolicy string

const (
	RemovalPolicyDestroy RemovalPolicy = "destroy"
	RemovalPolicyRetain  RemovalPolicy = "retain"
)

func (p RemovalPolicy) forceDelete() bool {
	return p == RemovalPolicyDestroy
}

func (p RemovalPolicy) options() []pulumi.ResourceOption {
	if p == RemovalPolicyRetain {
		return []pulumi.ResourceOption{pulumi.RetainOnDelete(true)}
	}
	return nil
}

// registryRemovalPolicy is fixed: registries are always torn down with the stack.
const registryRemovalPolicy = RemovalPolicyDestroy

type RepoStackArgs struct {
	RepositoryName string
}

type RepoStack struct {
	name    string
	gitRepo *codecommit.Repository
	ecrRepo *ecr.Repository
}

func NewRepoStack(ctx *pulumi.Context, args RepoStackArgs) (*RepoStack, error) {
	var err error
	rs := &RepoStack{name: strings.ToLower(args.RepositoryName)}

	rs.gitRepo, err = codecommit.NewRepository(ctx, args.RepositoryName+"Repository", &codecommit.RepositoryArgs{
		RepositoryName: pulumi.String(rs.name),
		Description:    pulumi.StringPtr(args.RepositoryName),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating git repository: %w", err)
	}

	rs.ecrRepo, err = ecr.NewRepository(ctx, args.RepositoryName+"EcrRepository", &ecr.RepositoryArgs{
		Name:        pulumi.StringPtr(rs.name),
		ForceDelete: pulumi.BoolPtr(registryRemovalPolicy.forceDelete()),
		ImageScanningConfiguration: &ecr.RepositoryImageScanningConfigurationArgs{
			ScanOnPush: pulumi.Bool(true),
		},
		ImageTagMutability: pulumi.StringPtr("MUTABLE"),
	}, registryRemovalPolicy.options()...)
	if err != nil {
		return nil, fmt.Errorf("Error creating registry: %w", err)
	}

	return rs, nil
}

func (r *RepoStack) Name() string {
	return r.name
}

func (r *RepoStack) GitRepo() *codecommit.Repository {
	return r.gitRepo
}

func (r *RepoStack) EcrRepo() *ecr.Repository {
	return r.ecrRepo
}

// GrantPullPush lets role push images to and pull images from the registry.
func (r *RepoStack) GrantPullPush(ctx *pulumi.Context, name string, role *iam.Role) error {
	_, err := attachInlinePolicy(ctx, name, role,
		PolicyStatement{
			Effect: EffectAllow,
			Actions: []string{
				"ecr:BatchCheckLayerAvailability",
				"ecr:GetDownloadUrlForLayer",
				"ecr:BatchGetImage",
				"ecr:PutImage",
				"ecr:InitiateLayerUpload",
				"ecr:UploadLayerPart",
				"ecr:CompleteLayerUpload",
			},
			Resources: pulumi.StringArray{r.ecrRepo.Arn},
		},
		PolicyStatement{
			Effect:    EffectAllow,
			Actions:   []string{"ecr:GetAuthorizationToken"},
			Resources: pulumi.StringArray{pulumi.String("*")},
		},
	)
	return err
}
