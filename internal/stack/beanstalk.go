package stack

import (
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/elasticbeanstalk"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const appPort = 3000

var instanceManagedPolicies = []string{
	"arn:aws:iam::aws:policy/AWSElasticBeanstalkWebTier",
	"arn:aws:iam::aws:policy/AWSElasticBeanstalkMulticontainerDocker",
	"arn:aws:iam::aws:policy/AWSElasticBeanstalkWorkerTier",
	"arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore",
	"arn:aws:iam::aws:policy/AmazonEC2ContainerRegistryReadOnly",
}

// OptionSetting is one Elastic Beanstalk environment option.
type OptionSetting struct {
	Namespace string
	Name      string
	Value     pulumi.StringInput
}

func optionSettingsArgs(settings []OptionSetting) elasticbeanstalk.EnvironmentSettingArray {
	arr := make(elasticbeanstalk.EnvironmentSettingArray, 0, len(settings))
	for _, s := range settings {
		arr = append(arr, elasticbeanstalk.EnvironmentSettingArgs{
			Namespace: pulumi.String(s.Namespace),
			Name:      pulumi.String(s.Name),
			Value:     s.Value,
		})
	}
	return arr
}

type BeanstalkTargetArgs struct {
	Config *Config
	Repo   *RepoStack
}

type BeanstalkTarget struct {
	app             *elasticbeanstalk.Application
	instanceRole    *iam.Role
	instanceProfile *iam.InstanceProfile
	network         *Network
	bundle          *sourceBundle
	version         *elasticbeanstalk.ApplicationVersion
	env             *elasticbeanstalk.Environment
	settings        []OptionSetting
}

func NewBeanstalkTarget(ctx *pulumi.Context, args BeanstalkTargetArgs) (*BeanstalkTarget, error) {
	var err error
	t := &BeanstalkTarget{}
	cfg := args.Config

	t.app, err = elasticbeanstalk.NewApplication(ctx, cfg.ApplicationName+"-app", &elasticbeanstalk.ApplicationArgs{
		Name: pulumi.StringPtr(cfg.ApplicationName),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating application: %w", err)
	}

	t.instanceRole, err = newServiceRole(ctx, "CustomEBRole", "ec2.amazonaws.com", instanceManagedPolicies...)
	if err != nil {
		return nil, err
	}
	t.instanceProfile, err = iam.NewInstanceProfile(ctx, "CustomInstanceProfile", &iam.InstanceProfileArgs{
		Role: t.instanceRole.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating instance profile: %w", err)
	}
	_, err = attachNamedInlinePolicy(ctx, "taggingPolicy", "myEbTaggingPolicy", t.instanceRole, PolicyStatement{
		Effect: EffectAllow,
		Actions: []string{
			"tag:GetResources",
			"tag:TagResources",
			"tag:UntagResources",
			"tag:GetTagKeys",
			"tag:GetTagValues",
			"cloudfront:GetDistribution",
			"acm:ListCertificates",
		},
		Resources: pulumi.StringArray{pulumi.String("*")},
	})
	if err != nil {
		return nil, err
	}

	if !cfg.Target.Enabled {
		ctx.Log.Info(fmt.Sprintf("environment %s is managed outside this stack", cfg.EnvironmentName), nil)
		return t, nil
	}

	if cfg.Target.CreateVpc {
		t.network, err = NewNetwork(ctx)
		if err != nil {
			return nil, err
		}
	}

	t.bundle, err = newSourceBundle(ctx, cfg.Target.AppDir)
	if err != nil {
		return nil, err
	}

	if cfg.Target.SeedImage {
		if _, err := NewSeedImage(ctx, args.Repo.EcrRepo(), cfg.Target.AppDir); err != nil {
			return nil, err
		}
	}

	t.version, err = elasticbeanstalk.NewApplicationVersion(ctx, "AppVersion", &elasticbeanstalk.ApplicationVersionArgs{
		Name:        pulumi.StringPtr(t.bundle.version),
		Application: t.app.Name,
		Bucket:      t.bundle.bucket.Bucket,
		Key:         t.bundle.object.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating application version: %w", err)
	}

	t.settings = t.optionSettings(cfg)
	t.env, err = elasticbeanstalk.NewEnvironment(ctx, "Environment", &elasticbeanstalk.EnvironmentArgs{
		Name:              pulumi.StringPtr(cfg.EnvironmentName),
		Application:       t.app.Name,
		SolutionStackName: pulumi.StringPtr(cfg.Target.SolutionStack),
		Settings:          optionSettingsArgs(t.settings),
		Version:           t.version.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating environment: %w", err)
	}

	return t, nil
}

func (t *BeanstalkTarget) optionSettings(cfg *Config) []OptionSetting {
	target := cfg.Target
	settings := []OptionSetting{
		{"aws:autoscaling:asg", "MinSize", pulumi.String(strconv.Itoa(target.MinSize))},
		{"aws:autoscaling:asg", "MaxSize", pulumi.String(strconv.Itoa(target.MaxSize))},
		{"aws:autoscaling:launchconfiguration", "IamInstanceProfile", t.instanceProfile.Name},
		{"aws:autoscaling:launchconfiguration", "InstanceType", pulumi.String(target.InstanceType)},
		{"aws:elasticbeanstalk:environment", "LoadBalancerType", pulumi.String("application")},
		{"aws:elasticbeanstalk:application:environment", "PORT", pulumi.String(strconv.Itoa(appPort))},
	}
	if target.StreamLogs {
		settings = append(settings,
			OptionSetting{"aws:elasticbeanstalk:cloudwatch:logs", "StreamLogs", pulumi.String("true")},
			OptionSetting{"aws:elasticbeanstalk:cloudwatch:logs", "DeleteOnTerminate", pulumi.String("true")},
			OptionSetting{"aws:elasticbeanstalk:cloudwatch:logs", "RetentionInDays", pulumi.String("1")},
		)
	}
	if t.network != nil {
		settings = append(settings,
			OptionSetting{"aws:ec2:vpc", "VPCId", t.network.VpcId()},
			OptionSetting{"aws:ec2:vpc", "Subnets", t.network.PrivateSubnets()},
			OptionSetting{"aws:ec2:vpc", "ELBSubnets", t.network.PublicSubnets()},
			OptionSetting{"aws:autoscaling:launchconfiguration", "SecurityGroups", t.network.InstanceSecurityGroup()},
		)
	}
	return settings
}

func (t *BeanstalkTarget) ApplicationName() pulumi.StringOutput {
	return t.app.Name
}

// Environment is nil when the environment is managed outside this stack.
func (t *BeanstalkTarget) Environment() *elasticbeanstalk.Environment {
	return t.env
}

// VersionLabel is empty when the environment is managed outside this stack.
func (t *BeanstalkTarget) VersionLabel() string {
	if t.bundle == nil {
		return ""
	}
	return t.bundle.version
}

func (t *BeanstalkTarget) OptionSettings() []OptionSetting {
	return t.settings
}
