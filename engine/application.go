package engine

import (
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type ApplicationConfig struct {
	// Path of the engine TOML file. Takes precedence over Config.
	ConfigPath string
	// Used as is when ConfigPath is empty. Nil means defaults.
	Config *metadata.EngineConfig
}

func (ac *ApplicationConfig) load() (*metadata.EngineConfig, error) {
	if ac == nil {
		cfg := &metadata.EngineConfig{}
		cfg.Defaults()
		return cfg, nil
	}
	if ac.ConfigPath != "" {
		return core.LoadConfig(ac.ConfigPath)
	}
	cfg := &metadata.EngineConfig{}
	if ac.Config != nil {
		*cfg = *ac.Config
	}
	cfg.Defaults()
	return cfg, nil
}
