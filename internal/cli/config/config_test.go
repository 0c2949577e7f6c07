package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("beam-width", 0, "")
	fs.Float64("max-analysis-time", 0, "")
	fs.String("features", "", "")
	fs.String("journal", "", "")
	fs.Int("port", 0, "")
	fs.String("output", "", "")
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beamline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, Defaults(), cfg.Config)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
beam_width: 4
propagate_beam: true
max_analysis_time: 10
features: features.txt
model: /abs/model.yaml
server:
  port: 9000
`)
	dir := filepath.Dir(path)

	tests := []struct {
		name  string
		env   map[string]string
		flags []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "file overrides defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.BeamWidth)
				assert.True(t, cfg.PropagateBeam)
				assert.True(t, cfg.StopOnError)
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, filepath.Join(dir, "features.txt"), cfg.Features)
				assert.Equal(t, "/abs/model.yaml", cfg.Model)
			},
		},
		{
			name: "env overrides file",
			env:  map[string]string{"BEAMLINE_BEAM_WIDTH": "6", "BEAMLINE_SERVER__PORT": "9100", "BEAMLINE_FEATURES": "env.txt"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6, cfg.BeamWidth)
				assert.Equal(t, 9100, cfg.Server.Port)
				assert.Equal(t, "env.txt", cfg.Features)
			},
		},
		{
			name:  "flags override env",
			env:   map[string]string{"BEAMLINE_BEAM_WIDTH": "6"},
			flags: []string{"--beam-width=8", "--port=9200", "--journal=:memory:", "--max-analysis-time=0.5"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8, cfg.BeamWidth)
				assert.Equal(t, 9200, cfg.Server.Port)
				assert.Equal(t, ":memory:", cfg.JournalPath)
				assert.Equal(t, 500*time.Millisecond, cfg.BeamOptions(nil).MaxAnalysisTime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs := newFlags()
			require.NoError(t, fs.Parse(tt.flags))

			cfg, err := Load(path, fs)
			require.NoError(t, err)
			assert.Equal(t, path, cfg.File)
			tt.check(t, cfg.Config)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		msg    string
	}{
		{name: "bad yaml", config: "beam_width: [", msg: "error reading config file"},
		{name: "zero beam", config: "beam_width: 0", msg: "beam_width must be at least 1"},
		{name: "bad output", config: "output: markdown", msg: "unknown output mode"},
		{name: "negative time", config: "max_analysis_time: -1", msg: "max_analysis_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Defaults(), GetConfig(ctx))
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{BeamWidth: 3}
	assert.Same(t, cfg, GetConfig(WithConfig(ctx, cfg)))
}
