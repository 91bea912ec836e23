package stack

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi-command/sdk/go/command/local"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	assetDir  = "asset"
	appBinary = "app"
)

// buildPackage is the go build package argument for appDir. Relative directories need
// the ./ prefix or go treats them as import paths.
func buildPackage(appDir string) string {
	if filepath.IsAbs(appDir) {
		return filepath.ToSlash(appDir)
	}
	return "./" + filepath.ToSlash(filepath.Clean(appDir))
}

func buildCommand(appDir string) string {
	return strings.Join([]string{
		fmt.Sprintf("rm -rf %s && mkdir %s", assetDir, assetDir),
		fmt.Sprintf("CGO_ENABLED=0 GOOS=linux GOARCH=amd64 go build -mod=readonly -o ./%s/%s %s", assetDir, appBinary, buildPackage(appDir)),
		fmt.Sprintf("chmod +x ./%s/%s", assetDir, appBinary),
	}, " && ")
}

// buildAppBinary cross-compiles the workload in appDir into asset/app.
func buildAppBinary(ctx *pulumi.Context, appDir string) error {
	_, err := local.Run(ctx, &local.RunArgs{
		Dir:        pulumi.StringRef("."),
		Command:    buildCommand(appDir),
		AssetPaths: []string{assetDir + "/" + appBinary},
	})
	if err != nil {
		return fmt.Errorf("Error running local command: %w", err)
	}
	return nil
}

type sourceBundle struct {
	bucket  *s3.BucketV2
	object  *s3.BucketObjectv2
	version string
}

// newSourceBundle uploads the compiled workload and its Dockerfile as a Beanstalk source bundle.
// The version label is derived from the contents of appDir.
func newSourceBundle(ctx *pulumi.Context, appDir string) (*sourceBundle, error) {
	var err error
	sb := &sourceBundle{}

	sb.version, err = versionLabel(appDir)
	if err != nil {
		return nil, fmt.Errorf("Error hashing %s: %w", appDir, err)
	}
	if err := buildAppBinary(ctx, appDir); err != nil {
		return nil, err
	}

	sb.bucket, err = s3.NewBucketV2(ctx, "bundle-bucket", &s3.BucketV2Args{
		ForceDestroy: pulumi.BoolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating bundle bucket: %w", err)
	}

	code := pulumi.NewAssetArchive(map[string]interface{}{
		appBinary:    pulumi.NewFileAsset(filepath.Join(assetDir, appBinary)),
		"Dockerfile": pulumi.NewFileAsset(filepath.Join(appDir, "Dockerfile")),
	})
	sb.object, err = s3.NewBucketObjectv2(ctx, "bundle", &s3.BucketObjectv2Args{
		Bucket: sb.bucket.Bucket,
		Key:    pulumi.StringPtr(fmt.Sprintf("bundles/%s.zip", sb.version)),
		Source: code,
	})
	if err != nil {
		return nil, fmt.Errorf("Error uploading source bundle: %w", err)
	}
	return sb, nil
}
