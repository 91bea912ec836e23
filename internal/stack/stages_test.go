package stack

import (
	"testing"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codepipeline"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
)

func TestActionArgsDefaults(t *testing.T) {
	args := manualApprovalAction().args()
	assert.Equal(t, pulumi.String("AWS"), args.Owner)
	assert.Equal(t, pulumi.String("1"), args.Version)
	assert.Equal(t, pulumi.IntPtr(1), args.RunOrder)
	assert.Nil(t, args.InputArtifacts)
	assert.Nil(t, args.OutputArtifacts)
	assert.Nil(t, args.Configuration)
}

func TestActionArtifacts(t *testing.T) {
	args := codeBuildAction(pulumi.String("DockerBuild"), SourceOutput, BuildOutput).args()
	assert.Equal(t, pulumi.StringArray{pulumi.String("SourceOutput")}, args.InputArtifacts)
	assert.Equal(t, pulumi.StringArray{pulumi.String("BuildOutput")}, args.OutputArtifacts)
	assert.Equal(t, pulumi.String("Build"), args.Category)
}

func TestStagesArgsKeepOrder(t *testing.T) {
	stages := []Stage{
		{Name: "Source", Actions: []Action{codeCommitSourceAction(pulumi.String("repo"), "master", false, SourceOutput)}},
		{Name: "Approve", Actions: []Action{manualApprovalAction()}},
	}
	arr := stagesArgs(stages)
	if assert.Len(t, arr, 2) {
		assert.Equal(t, pulumi.String("Source"), arr[0].(codepipeline.PipelineStageArgs).Name)
		assert.Equal(t, pulumi.String("Approve"), arr[1].(codepipeline.PipelineStageArgs).Name)
	}
}
