package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFile overlays configuration from a YAML file onto target.
// Values already populated from the environment are overwritten by any
// keys present in the file; keys absent from the file are left untouched.
func ParseFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
