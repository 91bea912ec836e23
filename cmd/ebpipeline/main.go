package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootConfig struct {
	stack   string
	region  string
	config  []string
	verbose bool
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ebpipeline",
		Short:         "Deploy the repository, registry, pipeline and Beanstalk environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(rootConfig.verbose)
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootConfig.stack, "stack", "s", "dev", "Stack name")
	flags.StringVarP(&rootConfig.region, "region", "r", "us-west-2", "AWS region")
	flags.StringArrayVarP(&rootConfig.config, "config", "c", nil, "Stack config as key=value, repeatable")
	flags.BoolVarP(&rootConfig.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newUpCmd(), newPreviewCmd(), newDestroyCmd(), newOutputsCmd())
	return rootCmd
}

// execute runs cmd and returns the process exit code. Failures go to the global logger.
func execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		zap.S().Error(err)
	}
	_ = zap.L().Sync()
	if err != nil {
		return 1
	}
	return 0
}

func main() {
	// flag errors surface before PersistentPreRunE installs the configured logger
	if err := setupLogger(false); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	stop()
	os.Exit(code)
}
