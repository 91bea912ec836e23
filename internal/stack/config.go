package stack

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

// ErrInvalidConfig is wrapped by every validation failure returned from LoadConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BuildModeBundle = "bundle"
	BuildModeDocker = "docker"

	TriggerEvents = "events"
	TriggerPoll   = "poll"
	TriggerNone   = "none"
)

var (
	ecrNamePattern        = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)
	codecommitNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)
)

type Config struct {
	RepositoryName  string
	ContainerName   string
	ApplicationName string
	EnvironmentName string
	Branch          string
	PipelineName    string
	Trigger         string
	// ArtifactRemovalPolicy decides whether the artifact bucket and key outlive the stack.
	ArtifactRemovalPolicy RemovalPolicy
	Build                 BuildConfig
	Target                TargetConfig
}

type BuildConfig struct {
	Mode             string `json:"mode"`
	ProjectName      string `json:"projectName"`
	Image            string `json:"image"`
	RubyVersion      string `json:"rubyVersion"`
	ComputeType      string `json:"computeType"`
	Privileged       bool   `json:"privileged"`
	DockerfileName   string `json:"dockerfileName"`
	AppPath          string `json:"appPath"`
	LogRetentionDays int    `json:"logRetentionDays"`
}

type TargetConfig struct {
	Enabled       bool   `json:"enabled"`
	SolutionStack string `json:"solutionStack"`
	InstanceType  string `json:"instanceType"`
	MinSize       int    `json:"minSize"`
	MaxSize       int    `json:"maxSize"`
	CreateVpc     bool   `json:"createVpc"`
	AppDir        string `json:"appDir"`
	SeedImage     bool   `json:"seedImage"`
	StreamLogs    bool   `json:"streamLogs"`
}

func DefaultConfig() Config {
	return Config{
		RepositoryName:        "testrepo",
		ContainerName:         "testContainer",
		ApplicationName:       "eb-deploy",
		EnvironmentName:       "eb-deploy-dev",
		Branch:                "master",
		PipelineName:          "TestPipeline",
		Trigger:               TriggerEvents,
		ArtifactRemovalPolicy: RemovalPolicyDestroy,
		Build: BuildConfig{
			Mode:             BuildModeBundle,
			ProjectName:      "DockerBuild",
			Image:            "aws/codebuild/amazonlinux2-x86_64-standard:5.0",
			RubyVersion:      DefaultRubyVersion,
			ComputeType:      "BUILD_GENERAL1_SMALL",
			Privileged:       true,
			LogRetentionDays: 7,
		},
		Target: TargetConfig{
			Enabled:       true,
			SolutionStack: "64bit Amazon Linux 2 v3.5.3 running Docker",
			InstanceType:  "t3.small",
			MinSize:       1,
			MaxSize:       2,
			CreateVpc:     true,
			AppDir:        "app",
			StreamLogs:    true,
		},
	}
}

// LoadConfig overlays the stack configuration of the current project on top of DefaultConfig.
func LoadConfig(ctx *pulumi.Context) (*Config, error) {
	c := DefaultConfig()
	cfg := config.New(ctx, "")

	for key, field := range map[string]*string{
		"repositoryName":  &c.RepositoryName,
		"containerName":   &c.ContainerName,
		"applicationName": &c.ApplicationName,
		"environmentName": &c.EnvironmentName,
		"branch":          &c.Branch,
		"pipelineName":    &c.PipelineName,
		"trigger":         &c.Trigger,
	} {
		if v := cfg.Get(key); v != "" {
			*field = v
		}
	}
	if v := cfg.Get("artifactRemovalPolicy"); v != "" {
		c.ArtifactRemovalPolicy = RemovalPolicy(v)
	}
	if err := cfg.GetObject("build", &c.Build); err != nil {
		return nil, fmt.Errorf("Error reading build config: %w", err)
	}
	if err := cfg.GetObject("target", &c.Target); err != nil {
		return nil, fmt.Errorf("Error reading target config: %w", err)
	}

	c.Build.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (b *BuildConfig) applyDefaults() {
	if b.DockerfileName == "" {
		b.DockerfileName = "Dockerfile"
	}
	if b.AppPath == "" {
		b.AppPath = "."
	}
	if b.RubyVersion == "" {
		b.RubyVersion = DefaultRubyVersion
	}
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	switch {
	case c.RepositoryName == "":
		invalid("repositoryName is required")
	case !codecommitNamePattern.MatchString(c.RepositoryName):
		invalid("repositoryName %q is not a valid CodeCommit repository name", c.RepositoryName)
	case len(c.RepositoryName) < 2 || !ecrNamePattern.MatchString(strings.ToLower(c.RepositoryName)):
		invalid("repositoryName %q does not normalize to a valid ECR repository name", c.RepositoryName)
	}
	if c.ApplicationName == "" {
		invalid("applicationName is required")
	}
	if c.EnvironmentName == "" {
		invalid("environmentName is required")
	}
	if c.Branch == "" {
		invalid("branch is required")
	}
	switch c.Build.Mode {
	case BuildModeBundle, BuildModeDocker:
	default:
		invalid("unknown build mode %q", c.Build.Mode)
	}
	if c.Build.ProjectName == "" {
		invalid("build.projectName is required")
	}
	switch c.Trigger {
	case TriggerEvents, TriggerPoll, TriggerNone:
	default:
		invalid("unknown trigger %q", c.Trigger)
	}
	switch c.ArtifactRemovalPolicy {
	case RemovalPolicyDestroy, RemovalPolicyRetain:
	default:
		invalid("unknown artifactRemovalPolicy %q", c.ArtifactRemovalPolicy)
	}
	if c.Target.MinSize < 1 {
		invalid("target.minSize must be at least 1, got %d", c.Target.MinSize)
	}
	if c.Target.MinSize > c.Target.MaxSize {
		invalid("target.minSize %d exceeds target.maxSize %d", c.Target.MinSize, c.Target.MaxSize)
	}
	return errors.Join(errs...)
}
