package stack

import (
	"fmt"
	"strings"

	ec2_classic "github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-awsx/sdk/v2/go/awsx/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// awsx default
const vpcCidr = "10.0.0.0/16"

// Network places the Beanstalk instances in private subnets behind a load balancer in public ones.
type Network struct {
	vpc           *ec2.Vpc
	instanceGroup *ec2_classic.SecurityGroup
}

func NewNetwork(ctx *pulumi.Context) (*Network, error) {
	var err error
	network := &Network{}

	as := ec2.SubnetAllocationStrategyAuto
	network.vpc, err = ec2.NewVpc(ctx, "vpc", &ec2.VpcArgs{
		NatGateways:    &ec2.NatGatewayConfigurationArgs{Strategy: ec2.NatGatewayStrategySingle},
		SubnetStrategy: &as,
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating vpc: %w", err)
	}

	network.instanceGroup, err = ec2_classic.NewSecurityGroup(ctx, "instance-sg", &ec2_classic.SecurityGroupArgs{
		Description:         pulumi.StringPtr("Beanstalk instances"),
		VpcId:               network.vpc.VpcId,
		Egress:              egressAll(),
		Ingress:             ingressFromVpc(80),
		RevokeRulesOnDelete: pulumi.BoolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("Error creating security group: %w", err)
	}

	return network, nil
}

func (n *Network) VpcId() pulumi.StringOutput {
	return n.vpc.VpcId
}

func (n *Network) PrivateSubnets() pulumi.StringOutput {
	return joinIds(n.vpc.PrivateSubnetIds)
}

func (n *Network) PublicSubnets() pulumi.StringOutput {
	return joinIds(n.vpc.PublicSubnetIds)
}

func (n *Network) InstanceSecurityGroup() pulumi.StringOutput {
	return n.instanceGroup.ID().ToStringOutput()
}

func joinIds(ids pulumi.StringArrayOutput) pulumi.StringOutput {
	return ids.ApplyT(func(ids []string) string {
		return strings.Join(ids, ",")
	}).(pulumi.StringOutput)
}

func egressAll() ec2_classic.SecurityGroupEgressArray {
	return ec2_classic.SecurityGroupEgressArray{
		ec2_classic.SecurityGroupEgressArgs{
			CidrBlocks:  pulumi.ToStringArray([]string{"0.0.0.0/0"}),
			Description: pulumi.String("Egress all"),
			Protocol:    pulumi.String("-1"),
			FromPort:    pulumi.Int(0),
			ToPort:      pulumi.Int(0),
		},
	}
}

func ingressFromVpc(port int) ec2_classic.SecurityGroupIngressArray {
	return ec2_classic.SecurityGroupIngressArray{
		ec2_classic.SecurityGroupIngressArgs{
			FromPort:    pulumi.Int(port),
			ToPort:      pulumi.Int(port),
			Protocol:    pulumi.String("tcp"),
			CidrBlocks:  pulumi.ToStringArray([]string{vpcCidr}),
			Description: pulumi.String("Load balancer to instances"),
		},
	}
}
