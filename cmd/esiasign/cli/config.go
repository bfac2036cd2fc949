package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	esiasign "github.com/mdean75/esia-sign"
)

// Key store types accepted in configuration.
const (
	KeyStorePKCS8  = "pkcs8"
	KeyStorePKCS12 = "pkcs12"
	KeyStorePKCS11 = "pkcs11"
)

// Environment variables read when the configuration names none.
const (
	DefaultStorePasswordEnv = "ESIASIGN_STORE_PASSWORD"
)

// Config is the YAML configuration file. Command-line flags override it.
// Passwords are never stored in it; only the names of the environment
// variables holding them.
type Config struct {
	KeyStore KeyStoreConfig `yaml:"keystore"`
	Alias    string         `yaml:"alias"`
	// KeyPasswordEnv defaults to KeyStore.PasswordEnv.
	KeyPasswordEnv string `yaml:"key_password_env"`
	Algorithm      string `yaml:"algorithm"`
	Provider       string `yaml:"provider"`
	// Chain is full, leaf or none.
	Chain       string    `yaml:"chain"`
	SigningTime bool      `yaml:"signing_time"`
	Log         LogConfig `yaml:"log"`
	// MetricsTextfile, when set, receives the Prometheus metrics in text
	// exposition format after the command finishes.
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// KeyStoreConfig locates the key store.
type KeyStoreConfig struct {
	Type string `yaml:"type"`
	// Path is the PEM bundle or the PKCS#12 file.
	Path string `yaml:"path"`
	// PasswordEnv names the variable holding the PKCS#12 password or the
	// PKCS#11 PIN. For pkcs8 it only serves as the key password fallback.
	PasswordEnv string `yaml:"password_env"`
	Module      string `yaml:"module"`
	Token       string `yaml:"token"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		KeyStore: KeyStoreConfig{
			Type:        KeyStorePKCS8,
			PasswordEnv: DefaultStorePasswordEnv,
		},
		Algorithm:   esiasign.DefaultAlgorithm,
		Provider:    esiasign.DefaultProvider,
		Chain:       esiasign.ChainFull.String(),
		SigningTime: true,
		Log:         LogConfig{Level: "warn"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	var errs []error
	switch c.KeyStore.Type {
	case KeyStorePKCS8, KeyStorePKCS12:
		if c.KeyStore.Path == "" {
			errs = append(errs, fmt.Errorf("keystore.path is required for %s", c.KeyStore.Type))
		}
	case KeyStorePKCS11:
		if c.KeyStore.Token == "" {
			errs = append(errs, errors.New("keystore.token is required for pkcs11"))
		}
	default:
		errs = append(errs, fmt.Errorf("keystore.type %q must be pkcs8, pkcs12 or pkcs11", c.KeyStore.Type))
	}
	// Neither PKCS#12 decoder nor crypto11 yields GOST keys.
	if strings.EqualFold(c.Provider, esiasign.ProviderGOST) && c.KeyStore.Type != KeyStorePKCS8 {
		errs = append(errs, fmt.Errorf("provider %s needs a GOST key, which keystore.type %q cannot hold; use pkcs8 or the %s provider",
			esiasign.ProviderGOST, c.KeyStore.Type, esiasign.ProviderStandard))
	}
	if c.KeyStore.PasswordEnv == "" {
		errs = append(errs, errors.New("keystore.password_env is required"))
	}
	if c.Alias == "" {
		errs = append(errs, errors.New("alias is required"))
	}
	if _, err := esiasign.ParseChainMode(c.Chain); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) keyPasswordEnv() string {
	if c.KeyPasswordEnv != "" {
		return c.KeyPasswordEnv
	}
	return c.KeyStore.PasswordEnv
}
