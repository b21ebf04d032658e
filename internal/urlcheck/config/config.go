package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// CacheSize is the number of link decisions kept in memory. Zero disables the cache.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// FunctionalityLevel gates database lines that carry a min-max level range.
	FunctionalityLevel uint `koanf:"flevel"`

	// Whitelist and Blacklist are database files, plain or .gz/.zst compressed.
	Whitelist []string `koanf:"whitelist" validate:"dive,db_path"`
	Blacklist []string `koanf:"blacklist" validate:"dive,db_path"`

	// Store is the bbolt feed store. Feeds imported there load after the files above.
	Store string `koanf:"store"`

	// MaxQueryLen caps the size of one match query buffer.
	MaxQueryLen int `koanf:"max_query_len" validate:"required,gte=64"`

	// HashFPRate is the bloom false-positive target for the URL hash list.
	HashFPRate float64 `koanf:"hash_fp_rate" validate:"gt=0,lt=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	CacheSize:          1000,
	Env:                "prod",
	LogLevel:           "info",
	FunctionalityLevel: 0,
	Store:              "",
	MaxQueryLen:        1 << 16,
	HashFPRate:         0.001,
}

var dbExtensions = map[string]struct{}{".wdb": {}, ".pdb": {}, ".db": {}, ".txt": {}}

// validDBPath accepts a non-empty path whose extension, ignoring a trailing
// .gz or .zst, is a known database extension.
func validDBPath(fl validator.FieldLevel) bool {
	p := strings.TrimSpace(fl.Field().String())
	if p == "" {
		return false
	}
	base := strings.ToLower(filepath.Base(p))
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".gz"), ".zst")
	_, ok := dbExtensions[filepath.Ext(base)]
	return ok
}

// envLoader loads environment variables with the prefix "URLCHECK_".
// Keys are lowercased with the prefix removed; values holding spaces or
// commas become lists. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "URLCHECK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "URLCHECK_"))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "db_path" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("db_path", validDBPath)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
