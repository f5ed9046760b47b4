package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int    `env:"MANUFACTURING_TEST_PORT" envDefault:"123"`
	Name string `env:"MANUFACTURING_TEST_NAME" envDefault:"items"  yaml:"name"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("MANUFACTURING_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseFileOverlaysEnv(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("name: widgets\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	if err := ParseFile(path, &cfg); err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if cfg.Name != "widgets" {
		t.Fatalf("expected file value to win, got %q", cfg.Name)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected untouched env default, got %d", cfg.Port)
	}
}

func TestParseFileMissing(t *testing.T) {
	var cfg envTestConfig
	if err := ParseFile(filepath.Join(t.TempDir(), "absent.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}
