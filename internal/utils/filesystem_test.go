package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "exports", "nested")

	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if !DirExists(path) {
		t.Error("Directory was not created")
	}

	// Existing directories are fine.
	if err := EnsureDir(path); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"tilde prefix", "~/redmiedge/data/sensor_log.csv", filepath.Join(home, "redmiedge/data/sensor_log.csv")},
		{"bare tilde", "~", home},
		{"absolute", "/tmp/log.csv", "/tmp/log.csv"},
		{"tilde in name", "~backup/x", "~backup/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandHome(tt.path)
			if err != nil {
				t.Fatalf("ExpandHome() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandHome() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dashboard.log")

	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	defer f.Close()

	logger := NewLogger(false, f)
	logger.Info().Str("sensor", "Light").Msg("hello")
	logger.Debug().Msg("hidden")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !FileExists(path) || len(content) == 0 {
		t.Fatal("log line not written")
	}
	if got := string(content); !strings.Contains(got, `"sensor":"Light"`) || strings.Contains(got, "hidden") {
		t.Errorf("log content = %s", got)
	}
}
