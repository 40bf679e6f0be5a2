package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
fix:
  host: fix-uat.truex.example
  port: 9443
  sender_comp_id: CLI
  target_comp_id: TRUEX_UAT_OE
  username: user1
  secret: s3cr3t
  heartbeat_interval_s: 30
  reconnect_base_ms: 1000
  reconnect_cap_ms: 30000
  reconnect_max_attempts: 5
  logon_timeout_ms: 5000
book:
  book_buffer_size: 20
  inversion_tolerance_pct: 1.0
  volatility_threshold: 0.5
ingress:
  enabled: false
store:
  data_dir: /tmp/fixmd-data
logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.FIX.Addr() != "fix-uat.truex.example:9443" {
		t.Errorf("Addr() = %q, want fix-uat.truex.example:9443", cfg.FIX.Addr())
	}
}

func TestEnvOverridesSecret(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("FIXMD_FIX_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FIX.Secret != "from-env" {
		t.Errorf("Secret = %q, want from-env (from FIXMD_FIX_SECRET)", cfg.FIX.Secret)
	}
}

func TestValidateRejectsMissingUsername(t *testing.T) {
	t.Parallel()
	body := `
fix:
  host: h
  port: 1
  sender_comp_id: C
  target_comp_id: T
  secret: s
  heartbeat_interval_s: 30
  reconnect_base_ms: 1000
  reconnect_cap_ms: 30000
  reconnect_max_attempts: 5
  logon_timeout_ms: 5000
book:
  book_buffer_size: 20
  inversion_tolerance_pct: 1.0
  volatility_threshold: 0.5
store:
  data_dir: /tmp/x
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate() to reject a missing fix.username")
	}
}
