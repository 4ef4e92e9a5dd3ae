package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeClamps(t *testing.T) {
	tests := []struct {
		name         string
		interval     time.Duration
		history      int
		wantInterval time.Duration
		wantHistory  int
	}{
		{"defaults kept", time.Second, 60, time.Second, 60},
		{"too fast", 10 * time.Millisecond, 60, MinInterval, 60},
		{"too slow", time.Minute, 60, MaxInterval, 60},
		{"zero falls back", 0, 0, DefaultInterval, DefaultHistory},
		{"short history", time.Second, 3, time.Second, MinHistory},
		{"long history", time.Second, 1000, time.Second, MaxHistory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Interval = tt.interval
			cfg.HistoryLength = tt.history
			cfg.Normalize()
			if cfg.Interval != tt.wantInterval {
				t.Errorf("Interval = %v, want %v", cfg.Interval, tt.wantInterval)
			}
			if cfg.HistoryLength != tt.wantHistory {
				t.Errorf("HistoryLength = %d, want %d", cfg.HistoryLength, tt.wantHistory)
			}
		})
	}
}

func TestSafeModeDisablesOptionalSubsystems(t *testing.T) {
	cfg := Default()
	cfg.SafeMode = true
	cfg.Normalize()
	if cfg.EnableDocker || cfg.EnableGPU || cfg.EnableNetwork {
		t.Errorf("safe mode left subsystems enabled: %+v", cfg)
	}
}

func TestOperationTimeout(t *testing.T) {
	cfg := Default()
	cfg.Interval = 2 * time.Second
	if got := cfg.OperationTimeout(); got != time.Second {
		t.Errorf("OperationTimeout() = %v, want 1s", got)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysmoni.yaml")
	body := "interval: 2s\nhistory: 120\ngpu: false\nsort: memory\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Interval != 2*time.Second || cfg.HistoryLength != 120 || cfg.EnableGPU || cfg.Sort != "memory" {
		t.Errorf("Load() = %+v", cfg)
	}
	if !cfg.EnableDocker {
		t.Error("Load() dropped default for docker")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SYSMONI_INTERVAL", "250")
	t.Setenv("SYSMONI_GPU", "0")
	t.Setenv("SYSMONI_HISTORY", "30")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %v, want 250ms", cfg.Interval)
	}
	if cfg.EnableGPU {
		t.Error("EnableGPU = true, want false")
	}
	if cfg.HistoryLength != 30 {
		t.Errorf("HistoryLength = %d, want 30", cfg.HistoryLength)
	}
}
