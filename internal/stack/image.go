package stack

import (
	"fmt"
	"path/filepath"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ecr"
	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// NewSeedImage pushes an initial :latest image of the workload so the registry is never empty
// before the first pipeline run. The binary must already be built into the asset directory.
func NewSeedImage(ctx *pulumi.Context, repo *ecr.Repository, appDir string) (*docker.Image, error) {
	authToken := ecr.GetAuthorizationTokenOutput(ctx, ecr.GetAuthorizationTokenOutputArgs{
		RegistryId: repo.RegistryId,
	})
	image, err := docker.NewImage(ctx, "app-image", &docker.ImageArgs{
		Registry: docker.RegistryArgs{
			Server:   repo.RepositoryUrl,
			Username: authToken.UserName(),
			Password: pulumi.ToSecret(authToken.ApplyT(func(authToken ecr.GetAuthorizationTokenResult) (*string, error) {
				return &authToken.Password, nil
			})).(pulumi.StringPtrOutput),
		},
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(assetDir),
			Dockerfile: pulumi.String(filepath.Join(appDir, "Dockerfile")),
		},
		ImageName: repo.RepositoryUrl.ApplyT(func(url string) string {
			return fmt.Sprintf("%s:latest", url)
		}).(pulumi.StringOutput),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating seed image: %w", err)
	}
	return image, nil
}
