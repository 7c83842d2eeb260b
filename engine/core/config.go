package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// LoadConfig reads the engine configuration at path and applies defaults.
func LoadConfig(path string) (*metadata.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config `%s`: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes an engine configuration. Unknown keys are rejected so
// typos do not silently fall back to defaults.
func ParseConfig(data []byte) (*metadata.EngineConfig, error) {
	cfg := &metadata.EngineConfig{}
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode engine config: %w", err)
	}
	cfg.Defaults()
	return cfg, nil
}

// LoadRenderGraphConfig reads a render graph description.
func LoadRenderGraphConfig(path string) (*metadata.RenderGraphConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read render graph `%s`: %w", path, err)
	}
	return ParseRenderGraphConfig(data)
}

func ParseRenderGraphConfig(data []byte) (*metadata.RenderGraphConfig, error) {
	cfg := &metadata.RenderGraphConfig{}
	if err := decodeStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode render graph: %w", err)
	}
	if len(cfg.Passes) == 0 {
		return nil, fmt.Errorf("render graph `%s` has no passes", cfg.Name)
	}
	return cfg, nil
}

func decodeStrict(data []byte, v interface{}) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return fmt.Errorf("%s", sme.String())
		}
		return err
	}
	return nil
}
