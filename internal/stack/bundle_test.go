package stack

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPackage(t *testing.T) {
	abs, err := filepath.Abs("testdata/app")
	assert.NoError(t, err)

	tests := []struct {
		appDir string
		want   string
	}{
		{appDir: "app", want: "./app"},
		{appDir: "./app", want: "./app"},
		{appDir: "services/web/", want: "./services/web"},
		{appDir: "../app", want: "./../app"},
		{appDir: abs, want: filepath.ToSlash(abs)},
	}
	for _, tt := range tests {
		t.Run(tt.appDir, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPackage(tt.appDir))
		})
	}
}

func TestBuildCommandWithAbsoluteAppDir(t *testing.T) {
	appDir := t.TempDir()
	cmd := buildCommand(appDir)
	assert.Contains(t, cmd, "go build -mod=readonly -o ./asset/app "+filepath.ToSlash(appDir))
	assert.NotContains(t, cmd, "./"+filepath.ToSlash(appDir))
}
