package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8099" {
		t.Fatalf("default addr: %s", cfg.Server.Addr)
	}
	if cfg.Keys.Store != "fs" || cfg.Keys.Dir != "data/keys" {
		t.Fatalf("default keys: %+v", cfg.Keys)
	}
	if cfg.Cache.Kind != "memory" {
		t.Fatalf("default cache: %s", cfg.Cache.Kind)
	}
	if cfg.PPID.IDBytes != 16 {
		t.Fatalf("default id_bytes: %d", cfg.PPID.IDBytes)
	}
	if cfg.JWKSCacheTTL() != 10*time.Second {
		t.Fatalf("default jwks ttl: %v", cfg.JWKSCacheTTL())
	}
}

func TestLoad_PPIDEnabledWithoutSaltIsFatal(t *testing.T) {
	t.Setenv("PPID_SALT", "")
	_, err := Load(writeConfig(t, `
ppid:
  enabled: true
`))
	if err == nil {
		t.Fatal("expected startup error: ppid enabled without salt")
	}
}

func TestLoad_PPIDSaltFromEnv(t *testing.T) {
	t.Setenv("PPID_SALT", "a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5a5")
	cfg, err := Load(writeConfig(t, `
ppid:
  enabled: true
  clients:
    - client_id: rp-one
      enabled: true
    - client_id: rp-two
      enabled: true
      rotating: true
      rotation_period: 6h
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	salt, err := cfg.PPIDSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	if len(salt) != 16 {
		t.Fatalf("salt bytes: %d", len(salt))
	}

	table := cfg.PPIDPolicies()
	if table.Len() != 2 {
		t.Fatalf("policies: %d", table.Len())
	}
	p, ok := table.Lookup("rp-two")
	if !ok || !p.Rotating || p.RotationPeriod != 6*time.Hour {
		t.Fatalf("rp-two policy: %+v ok=%v", p, ok)
	}
}

func TestLoad_RotatingClientNeedsPeriod(t *testing.T) {
	t.Setenv("PPID_SALT", "a5a5")
	_, err := Load(writeConfig(t, `
ppid:
  enabled: true
  clients:
    - client_id: rp-bad
      enabled: true
      rotating: true
`))
	if err == nil {
		t.Fatal("expected error: rotating client without rotation_period")
	}
}

func TestLoad_UnknownStore(t *testing.T) {
	_, err := Load(writeConfig(t, "keys:\n  store: etcd\n"))
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	_, err := Load(writeConfig(t, "keys:\n  store: postgres\n"))
	if err == nil {
		t.Fatal("expected error: postgres store without dsn")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FXA_ADDR", ":9000")
	t.Setenv("FXA_KEYS_DIR", "/var/lib/fxa/keys")
	cfg, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Keys.Dir != "/var/lib/fxa/keys" {
		t.Fatalf("env overrides not applied: %s %s", cfg.Server.Addr, cfg.Keys.Dir)
	}
}

func TestMasterKey(t *testing.T) {
	t.Setenv("SIGNING_MASTER_KEY", "")
	cfg, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	if err != nil {
		t.Fatal(err)
	}
	k, err := cfg.MasterKey()
	if err != nil || k != nil {
		t.Fatalf("empty env must yield nil key: %v %v", k, err)
	}

	t.Setenv("SIGNING_MASTER_KEY", "e3wlUfaN91WoNvHa9aB47ARoAz1DusF2I+hV7Uyz/wU=")
	k, err = cfg.MasterKey()
	if err != nil || len(k) != 32 {
		t.Fatalf("expected 32-byte key: %d %v", len(k), err)
	}

	t.Setenv("SIGNING_MASTER_KEY", "dG9vc2hvcnQ=")
	if _, err := cfg.MasterKey(); err == nil {
		t.Fatal("expected error for short master key")
	}
}
