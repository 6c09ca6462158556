package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0xcro3dile/courserag/internal/infrastructure/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCMD()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courserag.yaml")

	out, err := run(t, "config", "init", path)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("expected path in output, got %q", out)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if cfg.Chunking.Size != 800 {
		t.Errorf("expected defaults, got %+v", cfg.Chunking)
	}

	if _, err := run(t, "config", "init", path); err == nil {
		t.Error("second init should refuse to overwrite")
	}
	if _, err := run(t, "config", "init", "--force", path); err != nil {
		t.Errorf("--force should overwrite: %v", err)
	}
}

func TestIngest_MissingConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := run(t, "--config", path, "ingest"); err == nil {
		t.Error("expected error for a missing --config file")
	}
}

func TestIngest_UnparsableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("store: [backend\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "--config", path, "ingest"); err == nil {
		t.Error("expected config parse error")
	}
}

func TestAsk_RequiresQuestion(t *testing.T) {
	if _, err := run(t, "ask"); err == nil {
		t.Error("ask without a question should fail")
	}
}
