package stack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/require"
)

const testProject = "eb-pipeline"

const (
	typeGitRepo            = "aws:codecommit/repository:Repository"
	typeRegistry           = "aws:ecr/repository:Repository"
	typePipeline           = "aws:codepipeline/pipeline:Pipeline"
	typeProject            = "aws:codebuild/project:Project"
	typeEnvironment        = "aws:elasticbeanstalk/environment:Environment"
	typeApplication        = "aws:elasticbeanstalk/application:Application"
	typeApplicationVersion = "aws:elasticbeanstalk/applicationVersion:ApplicationVersion"
	typeRolePolicy         = "aws:iam/rolePolicy:RolePolicy"
	typeKey                = "aws:kms/key:Key"
	typeBucket             = "aws:s3/bucketV2:BucketV2"
	typeEventRule          = "aws:cloudwatch/eventRule:EventRule"
	typeImage              = "docker:index/image:Image"
	typeVpc                = "awsx:ec2:Vpc"
)

type mocks struct {
	mu        sync.Mutex
	resources []pulumi.MockResourceArgs
	calls     []string
}

func (m *mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	m.mu.Lock()
	m.resources = append(m.resources, args)
	m.mu.Unlock()

	outputs := args.Inputs.Copy()
	if _, ok := outputs["name"]; !ok {
		outputs["name"] = resource.NewStringProperty(args.Name)
	}
	outputs["arn"] = resource.NewStringProperty("arn:aws:mock:us-west-2:123456789012:" + args.Name)

	switch args.TypeToken {
	case typeRegistry:
		outputs["registryId"] = resource.NewStringProperty("123456789012")
		outputs["repositoryUrl"] = resource.NewStringProperty("123456789012.dkr.ecr.us-west-2.amazonaws.com/" + outputs["name"].StringValue())
	case typeGitRepo:
		outputs["cloneUrlHttp"] = resource.NewStringProperty("https://git-codecommit.us-west-2.amazonaws.com/v1/repos/" + outputs["repositoryName"].StringValue())
	case typeBucket:
		outputs["bucket"] = resource.NewStringProperty(args.Name)
	case typeKey:
		outputs["keyId"] = resource.NewStringProperty(args.Name + "-key-id")
	case typeEnvironment:
		outputs["endpointUrl"] = resource.NewStringProperty("awseb-mock.us-west-2.elb.amazonaws.com")
	case typeVpc:
		outputs["vpcId"] = resource.NewStringProperty("vpc-123")
		outputs["privateSubnetIds"] = resource.NewArrayProperty([]resource.PropertyValue{
			resource.NewStringProperty("subnet-priv-a"),
			resource.NewStringProperty("subnet-priv-b"),
		})
		outputs["publicSubnetIds"] = resource.NewArrayProperty([]resource.PropertyValue{
			resource.NewStringProperty("subnet-pub-a"),
			resource.NewStringProperty("subnet-pub-b"),
		})
	}
	return args.Name + "_id", outputs, nil
}

func (m *mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args.Token)
	m.mu.Unlock()

	switch args.Token {
	case "aws:ecr/getAuthorizationToken:getAuthorizationToken":
		return resource.PropertyMap{
			"userName":           resource.NewStringProperty("AWS"),
			"password":           resource.NewStringProperty("password"),
			"authorizationToken": resource.NewStringProperty("token"),
			"proxyEndpoint":      resource.NewStringProperty("https://123456789012.dkr.ecr.us-west-2.amazonaws.com"),
			"registryId":         resource.NewStringProperty("123456789012"),
		}, nil
	case "command:local:run":
		return resource.PropertyMap{
			"stdout": resource.NewStringProperty(""),
			"stderr": resource.NewStringProperty(""),
		}, nil
	}
	return args.Args, nil
}

func (m *mocks) ofType(token string) []pulumi.MockResourceArgs {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pulumi.MockResourceArgs
	for _, r := range m.resources {
		if r.TypeToken == token {
			out = append(out, r)
		}
	}
	return out
}

func (m *mocks) named(token, name string) (pulumi.MockResourceArgs, bool) {
	for _, r := range m.ofType(token) {
		if r.Name == name {
			return r, true
		}
	}
	return pulumi.MockResourceArgs{}, false
}

// snapshot serializes every registered resource, ordered by type and name.
func (m *mocks) snapshot(t *testing.T) []byte {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	type entry struct {
		Type   string                 `json:"type"`
		Name   string                 `json:"name"`
		Inputs map[string]interface{} `json:"inputs"`
	}
	entries := make([]entry, 0, len(m.resources))
	for _, r := range m.resources {
		entries = append(entries, entry{Type: r.TypeToken, Name: r.Name, Inputs: r.Inputs.Mappable()})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Name < entries[j].Name
	})
	b, err := json.Marshal(entries)
	require.NoError(t, err)
	return b
}

// testAppDir lays out a minimal workload so the source bundle can be hashed.
func testAppDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	return dir
}

// setConfig exposes values to the program the same way the engine does.
func setConfig(t *testing.T, values map[string]interface{}) {
	t.Helper()
	cfg := map[string]string{}
	for k, v := range values {
		switch v := v.(type) {
		case string:
			cfg[testProject+":"+k] = v
		default:
			b, err := json.Marshal(v)
			require.NoError(t, err)
			cfg[testProject+":"+k] = string(b)
		}
	}
	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	t.Setenv("PULUMI_CONFIG", string(b))
}

// run executes the program against fresh mocks with target.appDir pointed at a temp workload
// unless the caller already set it.
func run(t *testing.T, values map[string]interface{}) (*mocks, *Stack, error) {
	t.Helper()
	if values == nil {
		values = map[string]interface{}{}
	}
	target, _ := values["target"].(map[string]interface{})
	if target == nil {
		target = map[string]interface{}{}
	}
	if _, ok := target["appDir"]; !ok {
		target["appDir"] = testAppDir(t)
	}
	values["target"] = target
	setConfig(t, values)

	m := &mocks{}
	var s *Stack
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		var err error
		s, err = New(ctx)
		return err
	}, pulumi.WithMocks(testProject, "test", m))
	return m, s, err
}

func stageNames(t *testing.T, pipeline pulumi.MockResourceArgs) []string {
	t.Helper()
	var names []string
	for _, stage := range pipeline.Inputs["stages"].ArrayValue() {
		names = append(names, stage.ObjectValue()["name"].StringValue())
	}
	return names
}

func stageAction(t *testing.T, pipeline pulumi.MockResourceArgs, stage int) resource.PropertyMap {
	t.Helper()
	stages := pipeline.Inputs["stages"].ArrayValue()
	require.Greater(t, len(stages), stage)
	actions := stages[stage].ObjectValue()["actions"].ArrayValue()
	require.Len(t, actions, 1)
	return actions[0].ObjectValue()
}
