package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed defaults/keysound.yml
var defaultConfigs embed.FS

// initConfig creates the config directory with the starter mapping and
// an empty sounds directory, skipping anything that already exists.
func initConfig(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "sounds"), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	dst := filepath.Join(dir, "keysound.yml")
	if _, err := os.Stat(dst); err == nil {
		fmt.Printf("  skip %s (already exists)\n", dst)
		return nil
	}

	data, err := defaultConfigs.ReadFile("defaults/keysound.yml")
	if err != nil {
		return fmt.Errorf("read embedded default: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	fmt.Printf("  created %s\n", dst)
	return nil
}
