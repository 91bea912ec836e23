package stack

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const (
	EffectAllow = "Allow"
	EffectDeny  = "Deny"
)

// PolicyStatement is a single IAM statement. Resources may hold engine outputs.
type PolicyStatement struct {
	Effect    string
	Actions   []string
	Resources pulumi.StringArray
	// Service is the service principal for trust policies.
	Service string
}

func (s PolicyStatement) document() map[string]interface{} {
	effect := s.Effect
	if effect == "" {
		effect = EffectAllow
	}
	stmt := map[string]interface{}{
		"Effect": effect,
	}
	if len(s.Actions) == 1 {
		stmt["Action"] = s.Actions[0]
	} else {
		stmt["Action"] = s.Actions
	}
	if len(s.Resources) > 0 {
		stmt["Resource"] = s.Resources
	}
	if s.Service != "" {
		stmt["Principal"] = map[string]interface{}{"Service": s.Service}
	}
	return stmt
}

// PolicyDocument renders statements as a JSON policy document once every resource output resolves.
func PolicyDocument(statements ...PolicyStatement) pulumi.StringOutput {
	stmts := make([]interface{}, 0, len(statements))
	for _, s := range statements {
		stmts = append(stmts, s.document())
	}
	return pulumi.JSONMarshal(map[string]interface{}{
		"Version":   "2012-10-17",
		"Statement": stmts,
	})
}

func assumeRolePolicy(service string) pulumi.StringOutput {
	return PolicyDocument(PolicyStatement{
		Actions: []string{"sts:AssumeRole"},
		Service: service,
	})
}

func newServiceRole(ctx *pulumi.Context, name, service string, managedPolicyArns ...string) (*iam.Role, error) {
	args := &iam.RoleArgs{
		AssumeRolePolicy: assumeRolePolicy(service),
	}
	if len(managedPolicyArns) > 0 {
		args.ManagedPolicyArns = pulumi.ToStringArray(managedPolicyArns)
	}
	role, err := iam.NewRole(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("Error creating role %s: %w", name, err)
	}
	return role, nil
}

func attachInlinePolicy(ctx *pulumi.Context, name string, role *iam.Role, statements ...PolicyStatement) (*iam.RolePolicy, error) {
	return attachNamedInlinePolicy(ctx, name, "", role, statements...)
}

// attachNamedInlinePolicy pins the IAM policy name; an empty policyName lets the provider generate one.
func attachNamedInlinePolicy(ctx *pulumi.Context, name, policyName string, role *iam.Role, statements ...PolicyStatement) (*iam.RolePolicy, error) {
	args := &iam.RolePolicyArgs{
		Role:   role.Name,
		Policy: PolicyDocument(statements...),
	}
	if policyName != "" {
		args.Name = pulumi.StringPtr(policyName)
	}
	policy, err := iam.NewRolePolicy(ctx, name, args)
	if err != nil {
		return nil, fmt.Errorf("Error creating policy %s: %w", name, err)
	}
	return policy, nil
}

func ecrReadStatement() PolicyStatement {
	return PolicyStatement{
		Effect: EffectAllow,
		Actions: []string{
			"ecr:GetAuthorizationToken",
			"ecr:BatchCheckLayerAvailability",
			"ecr:GetDownloadUrlForLayer",
			"ecr:BatchGetImage",
		},
		Resources: pulumi.StringArray{pulumi.String("*")},
	}
}
