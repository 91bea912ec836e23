package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{
			name:  "empty",
			pairs: nil,
			want:  map[string]string{},
		},
		{
			name:  "values may contain equals",
			pairs: []string{"repositoryName=MyRepo", `build={"mode":"docker","appPath":"a=b"}`},
			want: map[string]string{
				"repositoryName": "MyRepo",
				"build":          `{"mode":"docker","appPath":"a=b"}`,
			},
		},
		{
			name:  "later pairs win",
			pairs: []string{"branch=main", "branch=release"},
			want:  map[string]string{"branch": "release"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"branch"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfig(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatOutputs(t *testing.T) {
	lines := formatOutputs(auto.OutputMap{
		"registryUrl":  {Value: "123.dkr.ecr.us-west-2.amazonaws.com/testrepo"},
		"pipelineName": {Value: "TestPipeline"},
		"token":        {Value: "hunter2", Secret: true},
	})
	assert.Equal(t, []string{
		"pipelineName: TestPipeline",
		"registryUrl: 123.dkr.ecr.us-west-2.amazonaws.com/testrepo",
		"token: [secret]",
	}, lines)
}

func TestProgressWriterSplitsLines(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	w := progressWriter(zap.New(core).Sugar())

	_, err := w.Write([]byte("Updating (dev)\n\n  + pulumi:pulumi:Stack"))
	require.NoError(t, err)
	assert.Equal(t, 2, logs.Len())

	_, err = w.Write([]byte(" create\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("Resources: 12 created"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var msgs []string
	for _, e := range logs.All() {
		assert.Equal(t, zapcore.InfoLevel, e.Level)
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{
		"Updating (dev)",
		"",
		"  + pulumi:pulumi:Stack create",
		"Resources: 12 created",
	}, msgs)
}

func TestProgressWriterRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w := progressWriter(zap.New(core).Sugar())

	_, err := w.Write([]byte("dropped\npartial"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 0, logs.Len())
}

func TestExecuteLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	failing := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("Failed to preview stack: %w", errors.New("stack is locked"))
		},
	}
	failing.SetArgs([]string{})
	assert.Equal(t, 1, execute(context.Background(), failing))

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Failed to preview stack: stack is locked", entries[0].Message)

	ok := &cobra.Command{
		Use:  "ok",
		RunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	ok.SetArgs([]string{})
	assert.Equal(t, 0, execute(context.Background(), ok))
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}
