package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps flag names whose config key is not the snake_case name.
var flagKeys = map[string]string{
	"port":    "server.port",
	"watch":   "server.watch",
	"journal": "journal_path",
}

// Loaded is a configuration together with the file it was read from.
type Loaded struct {
	*Config
	// File is the config file used, empty when none was found.
	File string
}

// Load reads configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
//
// Relative resource paths in the config file are resolved against the
// file's directory; paths from flags and env vars are taken as given.
func Load(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")
	d := Defaults()

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"beam_width":        d.BeamWidth,
		"max_analysis_time": d.MaxAnalysisTime,
		"stop_on_error":     d.StopOnError,
		"repair":            d.Repair,
		"journal_path":      d.JournalPath,
		"output":            d.Output,
		"server.port":       d.Server.Port,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := cfgFile
	if used == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			used = DefaultConfigFile
		}
	}
	fileKeys := map[string]bool{}
	if used != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
		for _, key := range []string{"features", "model", "resources", "journal_path"} {
			if fk.Exists(key) {
				fileKeys[key] = true
			}
		}
		if err := k.Merge(fk); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", used, err)
		}
	}

	// 3. Environment: BEAMLINE_BEAM_WIDTH -> beam_width, BEAMLINE_SERVER__PORT -> server.port
	if err := k.Load(env.Provider(DefaultEnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, DefaultEnvPrefix))
		key = strings.ReplaceAll(key, "__", ".")
		delete(fileKeys, key)
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			delete(fileKeys, key)
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if used != "" {
		base := filepath.Dir(used)
		for key := range fileKeys {
			switch key {
			case "features":
				cfg.Features = resolve(cfg.Features, base)
			case "model":
				cfg.Model = resolve(cfg.Model, base)
			case "resources":
				cfg.Resources = resolve(cfg.Resources, base)
			case "journal_path":
				cfg.JournalPath = resolve(cfg.JournalPath, base)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Loaded{Config: &cfg, File: used}, nil
}

// resolve joins a relative path onto base.
func resolve(path, base string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
