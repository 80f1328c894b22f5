// Package config carga la configuración del servicio desde YAML + env vars.
//
// Re-arquitectura deliberada respecto al diseño anterior: nada de singleton
// global con key-path lookup. Load construye un Config inmutable una sola
// vez al startup y cada componente recibe lo suyo por constructor.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arku/fxa/internal/ppid"
	"github.com/arku/fxa/internal/security/keywrap"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
		// JWKSMaxAge: segundos del Cache-Control público del endpoint JWKS.
		// Los callers deben acotar la propagación de una rotación a este
		// valor más un intervalo.
		JWKSMaxAge   int    `yaml:"jwks_max_age"`
		JWKSCacheTTL string `yaml:"jwks_cache_ttl"`
	} `yaml:"server"`

	Keys struct {
		// Store: fs | postgres
		Store string `yaml:"store"`
		Dir   string `yaml:"dir"`
		DSN   string `yaml:"dsn"`
		Bits  int    `yaml:"rsa_bits"`
		// MasterKeyEnv: nombre de la env var con la master key base64 para
		// cifrar privadas at-rest. Vacía la var => claves en claro (dev).
		MasterKeyEnv string `yaml:"master_key_env"`
	} `yaml:"keys"`

	Cache struct {
		// Kind: memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	PPID struct {
		Enabled bool `yaml:"enabled"`
		// SaltEnv: nombre de la env var con la salt de derivación (hex).
		// La salt nunca vive en el YAML.
		SaltEnv string `yaml:"salt_env"`
		IDBytes int    `yaml:"id_bytes"`
		Clients []struct {
			ClientID       string `yaml:"client_id"`
			Enabled        bool   `yaml:"enabled"`
			Rotating       bool   `yaml:"rotating"`
			RotationPeriod string `yaml:"rotation_period"`
		} `yaml:"clients"`
	} `yaml:"ppid"`
}

// Defaults que aplican cuando el YAML no los trae.
const (
	defaultAddr         = ":8099"
	defaultJWKSMaxAge   = 10
	defaultJWKSCacheTTL = 10 * time.Second
	defaultIDBytes      = 16
	defaultMasterKeyEnv = "SIGNING_MASTER_KEY"
	defaultSaltEnv      = "PPID_SALT"
)

// Load lee y valida el archivo de configuración.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.JWKSMaxAge == 0 {
		c.Server.JWKSMaxAge = defaultJWKSMaxAge
	}
	if c.Keys.Store == "" {
		c.Keys.Store = "fs"
	}
	if c.Keys.Dir == "" {
		c.Keys.Dir = "data/keys"
	}
	if c.Keys.MasterKeyEnv == "" {
		c.Keys.MasterKeyEnv = defaultMasterKeyEnv
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.PPID.IDBytes == 0 {
		c.PPID.IDBytes = defaultIDBytes
	}
	if c.PPID.SaltEnv == "" {
		c.PPID.SaltEnv = defaultSaltEnv
	}
}

// applyEnvOverrides pisa valores puntuales desde env (estilo 12-factor).
func (c *Config) applyEnvOverrides() {
	if v := getenv("FXA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("FXA_KEYS_STORE"); v != "" {
		c.Keys.Store = v
	}
	if v := getenv("FXA_KEYS_DIR"); v != "" {
		c.Keys.Dir = v
	}
	if v := getenv("FXA_KEYS_DSN"); v != "" {
		c.Keys.DSN = v
	}
	if v := getenv("FXA_CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := getenv("FXA_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("FXA_JWKS_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.JWKSMaxAge = n
		}
	}
}

// Validate chequea la config. Los errores fatales de startup viven acá:
// salt ausente con PPID habilitado, store desconocido, etc. Un error acá
// impide servir cualquier tráfico.
func (c *Config) Validate() error {
	switch c.Keys.Store {
	case "fs":
		if c.Keys.Dir == "" {
			return fmt.Errorf("config: keys.dir required for fs store")
		}
	case "postgres":
		if c.Keys.DSN == "" {
			return fmt.Errorf("config: keys.dsn required for postgres store")
		}
	default:
		return fmt.Errorf("config: unknown keys.store %q", c.Keys.Store)
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("config: cache.redis.addr required for redis cache")
		}
	default:
		return fmt.Errorf("config: unknown cache.kind %q", c.Cache.Kind)
	}

	if c.PPID.Enabled {
		if getenv(c.PPID.SaltEnv) == "" {
			return fmt.Errorf("config: ppid enabled but %s is empty", c.PPID.SaltEnv)
		}
		if _, err := c.PPIDSalt(); err != nil {
			return err
		}
		for _, cl := range c.PPID.Clients {
			if cl.Rotating {
				d, err := time.ParseDuration(cl.RotationPeriod)
				if err != nil || d <= 0 {
					return fmt.Errorf("config: client %s: invalid rotation_period %q", cl.ClientID, cl.RotationPeriod)
				}
			}
		}
	}
	return nil
}

// MasterKey resuelve la master key de cifrado at-rest desde env.
// Var vacía => nil (claves en claro; aceptable solo en dev).
func (c *Config) MasterKey() ([]byte, error) {
	v := getenv(c.Keys.MasterKeyEnv)
	if v == "" {
		return nil, nil
	}
	k, err := keywrap.ParseMasterKey(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", c.Keys.MasterKeyEnv, err)
	}
	return k, nil
}

// PPIDSalt resuelve la salt de derivación (hex) desde env.
func (c *Config) PPIDSalt() ([]byte, error) {
	v := getenv(c.PPID.SaltEnv)
	if v == "" {
		return nil, nil
	}
	salt, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: invalid hex salt: %w", c.PPID.SaltEnv, err)
	}
	return salt, nil
}

// PPIDPolicies construye la tabla inmutable de políticas por relying party.
func (c *Config) PPIDPolicies() *ppid.PolicyTable {
	out := make([]ppid.Policy, 0, len(c.PPID.Clients))
	for _, cl := range c.PPID.Clients {
		p := ppid.Policy{
			RelyingParty: cl.ClientID,
			Enabled:      cl.Enabled,
			Rotating:     cl.Rotating,
		}
		if cl.Rotating {
			p.RotationPeriod, _ = time.ParseDuration(cl.RotationPeriod)
		}
		out = append(out, p)
	}
	return ppid.NewPolicyTable(out)
}

// JWKSCacheTTL parsea el TTL del cache del documento JWKS.
func (c *Config) JWKSCacheTTL() time.Duration {
	if c.Server.JWKSCacheTTL == "" {
		return defaultJWKSCacheTTL
	}
	d, err := time.ParseDuration(c.Server.JWKSCacheTTL)
	if err != nil || d <= 0 {
		return defaultJWKSCacheTTL
	}
	return d
}

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}
