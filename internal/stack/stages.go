package stack

import (
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/codepipeline"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Artifact is a named handle passed between pipeline actions.
type Artifact struct {
	Name string
}

var (
	SourceOutput = Artifact{Name: "SourceOutput"}
	BuildOutput  = Artifact{Name: "BuildOutput"}
)

type Action struct {
	Name          string
	Category      string
	Owner         string
	Provider      string
	Version       string
	Inputs        []Artifact
	Outputs       []Artifact
	Configuration pulumi.StringMap
	RunOrder      int
}

type Stage struct {
	Name    string
	Actions []Action
}

func artifactNames(artifacts []Artifact) pulumi.StringArray {
	if len(artifacts) == 0 {
		return nil
	}
	names := make(pulumi.StringArray, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, pulumi.String(a.Name))
	}
	return names
}

func (a Action) args() codepipeline.PipelineStageActionArgs {
	owner, version, runOrder := a.Owner, a.Version, a.RunOrder
	if owner == "" {
		owner = "AWS"
	}
	if version == "" {
		version = "1"
	}
	if runOrder == 0 {
		runOrder = 1
	}
	args := codepipeline.PipelineStageActionArgs{
		Name:     pulumi.String(a.Name),
		Category: pulumi.String(a.Category),
		Owner:    pulumi.String(owner),
		Provider: pulumi.String(a.Provider),
		Version:  pulumi.String(version),
		RunOrder: pulumi.IntPtr(runOrder),
	}
	if len(a.Configuration) > 0 {
		args.Configuration = a.Configuration
	}
	if in := artifactNames(a.Inputs); in != nil {
		args.InputArtifacts = in
	}
	if out := artifactNames(a.Outputs); out != nil {
		args.OutputArtifacts = out
	}
	return args
}

func stagesArgs(stages []Stage) codepipeline.PipelineStageArray {
	arr := make(codepipeline.PipelineStageArray, 0, len(stages))
	for _, s := range stages {
		actions := make(codepipeline.PipelineStageActionArray, 0, len(s.Actions))
		for _, a := range s.Actions {
			actions = append(actions, a.args())
		}
		arr = append(arr, codepipeline.PipelineStageArgs{
			Name:    pulumi.String(s.Name),
			Actions: actions,
		})
	}
	return arr
}

func codeCommitSourceAction(repositoryName pulumi.StringInput, branch string, poll bool, output Artifact) Action {
	return Action{
		Name:     "CodeCommit_SourceMerge",
		Category: "Source",
		Provider: "CodeCommit",
		Outputs:  []Artifact{output},
		Configuration: pulumi.StringMap{
			"RepositoryName":       repositoryName,
			"BranchName":           pulumi.String(branch),
			"PollForSourceChanges": pulumi.Sprintf("%t", poll),
		},
	}
}

func codeBuildAction(projectName pulumi.StringInput, input, output Artifact) Action {
	return Action{
		Name:     "CodeBuild_DockerBuild",
		Category: "Build",
		Provider: "CodeBuild",
		Inputs:   []Artifact{input},
		Outputs:  []Artifact{output},
		Configuration: pulumi.StringMap{
			"ProjectName": projectName,
		},
	}
}

func manualApprovalAction() Action {
	return Action{
		Name:     "Manual_Approve",
		Category: "Approval",
		Provider: "Manual",
	}
}

func beanstalkDeployAction(applicationName, environmentName pulumi.StringInput, input Artifact) Action {
	return Action{
		Name:     "Deploy",
		Category: "Deploy",
		Provider: "ElasticBeanstalk",
		Inputs:   []Artifact{input},
		Configuration: pulumi.StringMap{
			"ApplicationName": applicationName,
			"EnvironmentName": environmentName,
		},
	}
}
