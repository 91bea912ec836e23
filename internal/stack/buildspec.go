package stack

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// BuildSpec is a CodeBuild build specification. Phases render in execution order.
type BuildSpec struct {
	Version   string         `yaml:"version"`
	Phases    BuildPhases    `yaml:"phases"`
	Artifacts BuildArtifacts `yaml:"artifacts"`
}

type BuildPhases struct {
	Install   *BuildPhase `yaml:"install,omitempty"`
	PreBuild  *BuildPhase `yaml:"pre_build,omitempty"`
	Build     *BuildPhase `yaml:"build,omitempty"`
	PostBuild *BuildPhase `yaml:"post_build,omitempty"`
}

type BuildPhase struct {
	RuntimeVersions map[string]string `yaml:"runtime-versions,omitempty"`
	Commands        []string          `yaml:"commands,omitempty"`
}

type BuildArtifacts struct {
	Files []string `yaml:"files"`
}

func (s BuildSpec) Render() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return "", fmt.Errorf("Error rendering buildspec: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("Error rendering buildspec: %w", err)
	}
	return buf.String(), nil
}

// DefaultRubyVersion is the Ruby runtime shipped with the amazonlinux2 standard:5.0 build image.
const DefaultRubyVersion = "3.2"

func rubyInstallPhase(version string) *BuildPhase {
	if version == "" {
		version = DefaultRubyVersion
	}
	return &BuildPhase{RuntimeVersions: map[string]string{"ruby": version}}
}

// BundleBuildSpec installs the gems and hands the whole checkout to the deploy stage.
func BundleBuildSpec(rubyVersion string) BuildSpec {
	return BuildSpec{
		Version: "0.2",
		Phases: BuildPhases{
			Install: rubyInstallPhase(rubyVersion),
			Build: &BuildPhase{Commands: []string{
				"gem install bundler --version '1.17.3'",
				"bundle install",
			}},
			PostBuild: &BuildPhase{Commands: []string{
				`echo "In Post-Build Phase"`,
				"rm Gemfile.lock",
				"pwd; ls -al; cat Dockerrun.aws.json",
			}},
		},
		Artifacts: BuildArtifacts{Files: []string{"**/*"}},
	}
}

// DockerBuildSpec builds the image from dockerfileName under appPath, pushes it to
// $ECR_REPO_URI and emits imagedefinitions.json.
func DockerBuildSpec(dockerfileName, appPath, rubyVersion string) BuildSpec {
	if dockerfileName == "" {
		dockerfileName = "Dockerfile"
	}
	if appPath == "" {
		appPath = "."
	}
	return BuildSpec{
		Version: "0.2",
		Phases: BuildPhases{
			Install: rubyInstallPhase(rubyVersion),
			PreBuild: &BuildPhase{Commands: []string{
				"TAG=$(echo $CODEBUILD_RESOLVED_SOURCE_VERSION | cut -c 1-7)",
				"TAG=${TAG:-latest}",
			}},
			Build: &BuildPhase{Commands: []string{
				`echo "In Build Phase"`,
				"cd $APP_PATH",
				"ls -l",
				"bundle lock --add-platform ruby",
				"aws ecr get-login-password | docker login --username AWS --password-stdin ${ECR_REPO_URI%%/*}",
				fmt.Sprintf("docker build -f %s -t $ECR_REPO_URI:$TAG .", dockerfileName),
				"docker push $ECR_REPO_URI:$TAG",
			}},
			PostBuild: &BuildPhase{Commands: []string{
				`echo "In Post-Build Phase"`,
				"rm Gemfile.lock",
				"pwd; ls -al; cat Dockerrun.aws.json",
				`printf '[{"name":"%s","imageUri":"%s"}]' $CONTAINER_NAME $ECR_REPO_URI:$TAG > imagedefinitions.json`,
				"pwd; ls -al; cat imagedefinitions.json",
			}},
		},
		Artifacts: BuildArtifacts{Files: []string{appPath + "/imagedefinitions.json"}},
	}
}
