package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"eb-pipeline-app/internal/stack"
)

func main() {
	pulumi.Run(stack.Program)
}
