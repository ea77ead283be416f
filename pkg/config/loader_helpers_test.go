package config

import (
	"testing"
	"time"
)

func TestMergeConfigsKeepsDefaultsForZeroValues(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		EarthEngine: EarthEngineConfig{Project: "custom"},
	}
	raw := map[string]any{
		"earthengine": map[string]any{"project": "custom"},
	}

	mergeConfigs(base, override, raw)

	if base.EarthEngine.Project != "custom" {
		t.Fatalf("expected project to be overridden")
	}
	if base.Bridge.DefaultTimeout != DefaultBridgeTimeout {
		t.Fatalf("default timeout should remain when not overridden, got %s", base.Bridge.DefaultTimeout)
	}
	if base.EarthEngine.MaxRetries != DefaultEEMaxRetries {
		t.Fatalf("max retries should remain when not present in raw")
	}
}

func TestMergeConfigsRespectsExplicitZeroes(t *testing.T) {
	base := DefaultConfig()
	base.Telemetry.Tracing = true
	override := &Config{}
	raw := map[string]any{
		"earthengine": map[string]any{"max_retries": 0},
		"telemetry":   map[string]any{"tracing": false},
		"sepal":       map[string]any{"insecure_hosts": []any{}},
	}

	mergeConfigs(base, override, raw)

	if base.EarthEngine.MaxRetries != 0 {
		t.Fatalf("explicit max_retries: 0 should apply")
	}
	if base.Telemetry.Tracing {
		t.Fatalf("explicit tracing: false should apply")
	}
	if len(base.Sepal.InsecureHosts) != 0 {
		t.Fatalf("explicit empty insecure_hosts should apply")
	}
}

func TestMergeConfigsDurations(t *testing.T) {
	base := DefaultConfig()
	mergeConfigs(base, &Config{Bridge: BridgeConfig{CloseTimeout: time.Second}}, nil)
	if base.Bridge.CloseTimeout != time.Second {
		t.Fatalf("close timeout = %s", base.Bridge.CloseTimeout)
	}
}

func TestFieldSet(t *testing.T) {
	raw := map[string]any{"a": map[string]any{"b": 1}}
	if !fieldSet(raw, "a", "b") {
		t.Fatal("a.b should be set")
	}
	if fieldSet(raw, "a", "c") || fieldSet(raw, "x") || fieldSet(nil, "a") {
		t.Fatal("unexpected fieldSet result")
	}
}
