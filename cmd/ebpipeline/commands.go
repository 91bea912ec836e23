package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eb-pipeline-app/internal/stack"
)

const projectName = "eb-pipeline"

// Provider plugins the program needs, pinned to the SDK versions in go.mod.
var plugins = []struct{ name, version string }{
	{"aws", "v6.24.0"},
	{"awsx", "v2.5.0"},
	{"docker", "v4.5.1"},
	{"command", "v0.9.2"},
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context())
		},
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the changes an update would make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context())
		},
	}
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Delete every resource in the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(cmd.Context())
		},
	}
}

func newOutputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutputs(cmd.Context())
		},
	}
}

// parseConfig turns key=value pairs into a map. Later pairs win.
func parseConfig(pairs []string) (map[string]string, error) {
	cfg := map[string]string{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config %q, expected key=value", pair)
		}
		cfg[key] = value
	}
	return cfg, nil
}

func initialize(ctx context.Context, log *zap.SugaredLogger) (auto.Stack, error) {
	pairs, err := parseConfig(rootConfig.config)
	if err != nil {
		return auto.Stack{}, err
	}

	s, err := auto.UpsertStackInlineSource(ctx, rootConfig.stack, projectName, stack.Program)
	if err != nil {
		return auto.Stack{}, fmt.Errorf("Failed to create or select stack: %w", err)
	}
	log.Debugf("Created/Selected stack %q", rootConfig.stack)

	for _, p := range plugins {
		if err := s.Workspace().InstallPlugin(ctx, p.name, p.version); err != nil {
			return auto.Stack{}, fmt.Errorf("Failed to install %s plugin: %w", p.name, err)
		}
	}

	if err := s.SetConfig(ctx, "aws:region", auto.ConfigValue{Value: rootConfig.region}); err != nil {
		return auto.Stack{}, fmt.Errorf("Failed to set stack configuration: %w", err)
	}
	for key, value := range pairs {
		if err := s.SetConfig(ctx, key, auto.ConfigValue{Value: value}); err != nil {
			return auto.Stack{}, fmt.Errorf("Failed to set %s: %w", key, err)
		}
	}
	return s, nil
}

func runUp(ctx context.Context) error {
	log := zap.L().Named("pulumi.up").Sugar()
	s, err := initialize(ctx, log)
	if err != nil {
		return err
	}

	progress := progressWriter(log)
	defer progress.Close()

	log.Debug("Starting update")
	res, err := s.Up(ctx, optup.ProgressStreams(progress))
	if err != nil {
		return fmt.Errorf("Failed to update stack: %w", err)
	}
	log.Infof("Successfully deployed stack %s", rootConfig.stack)
	printOutputs(res.Outputs)
	return nil
}

func runPreview(ctx context.Context) error {
	log := zap.L().Named("pulumi.preview").Sugar()
	s, err := initialize(ctx, log)
	if err != nil {
		return err
	}

	progress := progressWriter(log)
	defer progress.Close()

	log.Debug("Starting preview")
	res, err := s.Preview(ctx, optpreview.ProgressStreams(progress))
	if err != nil {
		log.Errorf("Preview of stack %s failed: %s", rootConfig.stack, strings.Split(err.Error(), "\n")[0])
		return fmt.Errorf("Failed to preview stack: %w", err)
	}
	for op, count := range res.ChangeSummary {
		log.Infof("%s: %d", op, count)
	}
	return nil
}

func runDestroy(ctx context.Context) error {
	log := zap.L().Named("pulumi.destroy").Sugar()
	s, err := initialize(ctx, log)
	if err != nil {
		return err
	}

	progress := progressWriter(log)
	defer progress.Close()

	log.Debug("Starting destroy")
	if _, err := s.Destroy(ctx, optdestroy.ProgressStreams(progress)); err != nil {
		return fmt.Errorf("Failed to destroy stack: %w", err)
	}
	log.Infof("Successfully destroyed stack %s", rootConfig.stack)
	return nil
}

func runOutputs(ctx context.Context) error {
	log := zap.L().Named("pulumi.outputs").Sugar()
	s, err := auto.SelectStackInlineSource(ctx, rootConfig.stack, projectName, stack.Program)
	if err != nil {
		return fmt.Errorf("Failed to select stack: %w", err)
	}
	outs, err := s.Outputs(ctx)
	if err != nil {
		return fmt.Errorf("Failed to read outputs: %w", err)
	}
	log.Debugf("Read %d outputs", len(outs))
	printOutputs(outs)
	return nil
}

func printOutputs(outs auto.OutputMap) {
	for _, line := range formatOutputs(outs) {
		fmt.Println(line)
	}
}

func formatOutputs(outs auto.OutputMap) []string {
	keys := make([]string, 0, len(outs))
	for k := range outs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := outs[k]
		if v.Secret {
			lines = append(lines, fmt.Sprintf("%s: [secret]", k))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %v", k, v.Value))
	}
	return lines
}
