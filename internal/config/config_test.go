package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(map[string]string{})
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}

	if cfg.WorkerID != "relnotes-1" {
		t.Errorf("unexpected worker id %q", cfg.WorkerID)
	}
	if cfg.StreamKey != "relnotes.render" || cfg.ResultStream != "relnotes.rendered" {
		t.Errorf("unexpected streams %q -> %q", cfg.StreamKey, cfg.ResultStream)
	}
	if cfg.BlockTime != time.Second {
		t.Errorf("unexpected block time %v", cfg.BlockTime)
	}
	if cfg.UnsafeExpressions {
		t.Error("unsafe expressions should be off by default")
	}
	if !cfg.CustomHelpersEnabled {
		t.Error("custom helpers should be on by default")
	}
	if cfg.PolishEnabled() {
		t.Error("polish needs an api key")
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(map[string]string{
		"WORKER_ID":              "relnotes-7",
		"UNSAFE_EXPRESSIONS":     "true",
		"CUSTOM_HELPERS_ENABLED": "false",
		"LLM_API_KEY":            "secret",
		"BLOCK_TIME":             "250ms",
		"LOG_LEVEL":              "debug",
	})
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}

	if cfg.WorkerID != "relnotes-7" || !cfg.UnsafeExpressions || cfg.CustomHelpersEnabled {
		t.Errorf("overrides not applied: %s", cfg)
	}
	if cfg.BlockTime != 250*time.Millisecond {
		t.Errorf("unexpected block time %v", cfg.BlockTime)
	}
	if !cfg.PolishEnabled() {
		t.Error("polish should be enabled with an api key")
	}
	if strings.Contains(cfg.String(), "secret") {
		t.Error("String must not leak the api key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"zero render timeout", map[string]string{"RENDER_TIMEOUT": "0s"}, "RENDER_TIMEOUT"},
		{"same streams", map[string]string{"STREAM_KEY": "a", "RESULT_STREAM": "a"}, "RESULT_STREAM"},
		{"bad port", map[string]string{"HEALTH_PORT": "70000"}, "HEALTH_PORT"},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}, "LOG_LEVEL"},
		{"negative block time", map[string]string{"BLOCK_TIME": "-1s"}, "BLOCK_TIME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWith(tt.env)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error about %s, got %v", tt.wantErr, err)
			}
		})
	}
}
