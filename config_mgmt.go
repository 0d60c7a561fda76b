package main

import (
	"encoding/json"
	"fmt"
	"github.com/shimmeringbee/irrigation/config"
	"os"
	"path/filepath"
	"strings"
)

// readConfigDirectory calls fn with the name and content of every JSON file in dir, creating
// dir if it does not exist.
func readConfigDirectory(dir string, fn func(name string, data []byte) error) error {
	if err := os.MkdirAll(dir, DefaultDirectoryPermissions); err != nil {
		return fmt.Errorf("failed to ensure configuration directory exists: %w", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory listing for configurations: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		fullPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("failed to read configuration file '%s': %w", fullPath, err)
		}

		if err := fn(strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())), data); err != nil {
			return fmt.Errorf("failed to parse configuration file '%s': %w", fullPath, err)
		}
	}

	return nil
}

func loadIrrigationConfiguration(file string) (config.IrrigationConfig, error) {
	cfg := config.IrrigationConfig{}

	data, err := os.ReadFile(file)
	if err != nil {
		return cfg, fmt.Errorf("failed to read irrigation configuration '%s': %w", file, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse irrigation configuration '%s': %w", file, err)
	}

	cfg.Defaults()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid irrigation configuration '%s': %w", file, err)
	}

	return cfg, nil
}

func loadInterfaceConfigurations(dir string) ([]config.InterfaceConfig, error) {
	var cfgs []config.InterfaceConfig

	err := readConfigDirectory(dir, func(name string, data []byte) error {
		cfg := config.InterfaceConfig{Name: name}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return err
		}

		cfgs = append(cfgs, cfg)
		return nil
	})

	return cfgs, err
}

func loadLoggingConfigurations(dir string) ([]config.LoggingConfig, error) {
	var cfgs []config.LoggingConfig

	err := readConfigDirectory(dir, func(name string, data []byte) error {
		cfg := config.LoggingConfig{Name: name}

		if err := json.Unmarshal(data, &cfg); err != nil {
			return err
		}

		cfgs = append(cfgs, cfg)
		return nil
	})

	return cfgs, err
}
