package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  host: http://backend:8000
policy:
  poll_interval: 250ms
`)
	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.API.BasePath != "/api" {
		t.Fatalf("expected default base path /api, got %s", cfg.API.BasePath)
	}
	if cfg.Policy.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected poll interval 250ms, got %s", cfg.Policy.PollInterval)
	}
	if cfg.Policy.WindowSpan != 10*time.Second || cfg.Policy.WindowMaxPoints != 100 {
		t.Fatalf("expected 10s/100 window, got %s/%d", cfg.Policy.WindowSpan, cfg.Policy.WindowMaxPoints)
	}
	if !cfg.Policy.Dedup {
		t.Fatalf("expected dedup on by default")
	}
	if cfg.Metrics.Addr != ":9100" || cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected listener defaults %s %s", cfg.Server.Addr, cfg.Metrics.Addr)
	}
	if cfg.Control.MaxRPM != 8000 || cfg.Control.MaxTorque != 6000 {
		t.Fatalf("unexpected slider limits %+v", cfg.Control)
	}
	if len(cfg.Activity.Channels) != 2 || cfg.Activity.Channels[0].Clamp == nil {
		t.Fatalf("expected default clamped activity channels, got %+v", cfg.Activity.Channels)
	}
	if cfg.Cards.Motor.RPM != 6000 || cfg.Cards.Vibration.Frequency != 500 {
		t.Fatalf("unexpected card limits %+v %+v", cfg.Cards.Motor, cfg.Cards.Vibration)
	}
}

func TestLoadDedupCanBeDisabled(t *testing.T) {
	path := writeConfig(t, `
policy:
  dedup: false
activity:
  channels:
    - name: amplitude
`)
	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Policy.Dedup {
		t.Fatalf("expected dedup disabled")
	}
	if len(cfg.Activity.Channels) != 1 || cfg.Activity.Channels[0].Clamp != nil {
		t.Fatalf("expected configured unclamped channel, got %+v", cfg.Activity.Channels)
	}
	opts := cfg.WindowOptions()
	if opts.Dedup || opts.MaxPoints != 100 {
		t.Fatalf("unexpected window options %+v", opts)
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"MOTORDASH_API_BASE_PATH":     "https://proxy.example/motor/api",
		"MOTORDASH_API_HOST":          "",
		"MOTORDASH_POLL_INTERVAL":     "50ms",
		"MOTORDASH_WINDOW_MAX_POINTS": "40",
		"MOTORDASH_LOG_LEVEL":         "debug",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg, err := LoadWithEnv("", lookup)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.API.BasePath != "https://proxy.example/motor/api" {
		t.Fatalf("expected env base path, got %s", cfg.API.BasePath)
	}
	if cfg.API.Host != "http://localhost:8000" {
		t.Fatalf("empty env value must not override host, got %q", cfg.API.Host)
	}
	if cfg.Policy.PollInterval != 50*time.Millisecond || cfg.Policy.WindowMaxPoints != 40 {
		t.Fatalf("unexpected policy %+v", cfg.Policy)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug log level, got %s", cfg.Log.Level)
	}
}

func TestEnvRejectsBadDuration(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "MOTORDASH_POLL_INTERVAL" {
			return "fast", true
		}
		return "", false
	}
	if _, err := LoadWithEnv("", lookup); err == nil {
		t.Fatalf("expected duration parse error")
	}
}

func TestBuildTimeBasePath(t *testing.T) {
	orig := DefaultBasePath
	DefaultBasePath = "/motor/api"
	defer func() { DefaultBasePath = orig }()

	cfg, err := LoadWithEnv("", noEnv)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.API.BasePath != "/motor/api" {
		t.Fatalf("expected build-time base path, got %s", cfg.API.BasePath)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown source":      "source:\n  kind: modbus\n",
		"opcua without nodes": "source:\n  kind: opcua\nopcua:\n  endpoint: opc.tcp://plc:4840\n",
		"same listeners":      "server:\n  addr: \":9000\"\nmetrics:\n  addr: \":9000\"\n",
		"bad clamp":           "activity:\n  channels:\n    - name: rpm\n      clamp: {min: 10, max: 1}\n",
		"no host":             "api:\n  host: \"\"\n",
	}
	for name, data := range cases {
		if _, err := LoadWithEnv(writeConfig(t, data), noEnv); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadOPCUASource(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: OPCUA
opcua:
  endpoint: opc.tcp://plc:4840
  nodes:
    - node_id: "ns=2;s=Motor.RPM"
      field: motor.rpm
`)
	cfg, err := LoadWithEnv(path, noEnv)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Source.Kind != SourceOPCUA {
		t.Fatalf("expected normalized source kind, got %s", cfg.Source.Kind)
	}
	if cfg.OPCUA.Nodes[0].Scale != 1 || cfg.OPCUA.SecurityMode != "None" {
		t.Fatalf("expected opcua defaults, got %+v", cfg.OPCUA)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join("..", "..", "..", "data", "config.yaml"), noEnv)
	if err != nil {
		t.Fatalf("load sample config: %v", err)
	}
	if cfg.Source.Kind != SourceHTTP || len(cfg.OPCUA.Nodes) != 11 {
		t.Fatalf("unexpected source %s with %d nodes", cfg.Source.Kind, len(cfg.OPCUA.Nodes))
	}
	if len(cfg.Activity.Channels) != 2 || cfg.Activity.Channels[1].Scale != 1000 {
		t.Fatalf("unexpected activity channels %+v", cfg.Activity.Channels)
	}
	if cfg.Cards.Vibration.Frequency != 500 || cfg.Control.MaxRPM != 8000 {
		t.Fatalf("unexpected limits %+v %+v", cfg.Cards.Vibration, cfg.Control)
	}
}
