package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects where key sounds come from.
type Mode int

const (
	// ModeFile plays a single WAV file for every key.
	ModeFile Mode = iota
	// ModeDirectory maps <key>.wav files in a directory to keys.
	ModeDirectory
	// ModeMapping uses a YAML file mapping key names to WAV files.
	ModeMapping
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeDirectory:
		return "directory"
	case ModeMapping:
		return "mapping"
	}
	return "unknown"
}

// Config holds the validated run options.
type Config struct {
	Mode   Mode
	Source string
	Volume float64
}

// Validate checks the source path against the mode and bounds the
// volume multiplier.
func (c *Config) Validate() error {
	if c.Volume <= 0 || c.Volume > 4 {
		return fmt.Errorf("volume must be between 0 and 4, got %g", c.Volume)
	}

	info, err := os.Stat(c.Source)
	if err != nil {
		return fmt.Errorf("sound source: %w", err)
	}
	switch c.Mode {
	case ModeFile, ModeMapping:
		if info.IsDir() {
			return fmt.Errorf("expected a file for %s mode: %s", c.Mode, c.Source)
		}
	case ModeDirectory:
		if !info.IsDir() {
			return fmt.Errorf("expected a directory for %s mode: %s", c.Mode, c.Source)
		}
	}
	return nil
}

// MappingFile is the YAML sound mapping: a base directory holding the
// WAV files plus key-name entries. A relative dir resolves against the
// mapping file's location.
type MappingFile struct {
	Dir  string            `yaml:"dir"`
	Keys map[string]string `yaml:"keys"`
}

// LoadMapping reads and parses a YAML mapping file.
func LoadMapping(path string) (*MappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var mf MappingFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if mf.Dir == "" {
		return nil, fmt.Errorf("%s: mapping must set 'dir'", path)
	}
	if len(mf.Keys) == 0 {
		return nil, fmt.Errorf("%s: mapping has no keys", path)
	}
	return &mf, nil
}
