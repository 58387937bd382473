package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. Environment variables in the file are expanded and
// fields left out keep the values of the named preset.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from r. originalPath is only used in errors.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// The preset has to be known before decoding so its values become the defaults.
	var header struct {
		Preset string `json:"preset"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if header.Preset == "" {
		return nil, errors.Errorf("%s: \"preset\" is required", originalPath)
	}
	cfg, err := PresetConfig(header.Preset)
	if err != nil {
		return nil, errors.Wrap(err, originalPath)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}
	if err := cfg.Validate(originalPath); err != nil {
		return nil, err
	}
	return cfg, nil
}
