// Package cli implements the esiasign command.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	esiasign "github.com/mdean75/esia-sign"
	"github.com/mdean75/esia-sign/keystore/pkcs11"
	"github.com/mdean75/esia-sign/keystore/pkcs12"
	"github.com/mdean75/esia-sign/keystore/pkcs8"
)

// rootOptions holds the global flags and the state shared by subcommands for
// one invocation.
type rootOptions struct {
	configPath string
	flags      Config

	cfg      Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *esiasign.PrometheusMetricsRecorder

	store   esiasign.KeyStore
	closers []func() error

	stdin          io.Reader
	stdout, stderr io.Writer
}

// Run executes the command line args with the given streams. Resources opened
// by subcommands are released before it returns.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	o := &rootOptions{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := newRootCommand(o)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	defer func() {
		err = errors.Join(err, o.close())
	}()
	return cmd.Execute()
}

func newRootCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "esiasign",
		Short: "Sign ESIA requests with CMS SignedData",
		Long: `esiasign produces CMS SignedData envelopes with keys held in a PKCS#12
file, a PEM bundle or on a PKCS#11 token, using GOST R 34.10-2012 or standard
algorithms. GOST keys are read from PEM bundles only.

Passwords and PINs are read from environment variables only.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.setup(cmd)
		},
	}

	d := DefaultConfig()
	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&o.flags.KeyStore.Type, "keystore-type", d.KeyStore.Type, "key store type (pkcs8, pkcs12, pkcs11)")
	pf.StringVar(&o.flags.KeyStore.Path, "keystore", "", "PEM bundle or PKCS#12 file")
	pf.StringVar(&o.flags.KeyStore.Module, "pkcs11-module", "", "PKCS#11 module library")
	pf.StringVar(&o.flags.KeyStore.Token, "pkcs11-token", "", "PKCS#11 token label")
	pf.StringVar(&o.flags.KeyStore.PasswordEnv, "store-password-env", d.KeyStore.PasswordEnv,
		"environment variable holding the key store password or token PIN")
	pf.StringVar(&o.flags.KeyPasswordEnv, "key-password-env", "",
		"environment variable holding the key entry password (defaults to --store-password-env)")
	pf.StringVar(&o.flags.Alias, "alias", "", "key entry alias")
	pf.StringVar(&o.flags.Algorithm, "algorithm", d.Algorithm, "signature algorithm")
	pf.StringVar(&o.flags.Provider, "provider", d.Provider, "algorithm provider")
	pf.StringVar(&o.flags.Chain, "chain", d.Chain, "certificates to embed (full, leaf, none)")
	pf.BoolVar(&o.flags.SigningTime, "signing-time", d.SigningTime, "include the signing-time attribute")
	pf.StringVar(&o.flags.Log.Level, "log-level", d.Log.Level, "log level (debug, info, warn, error)")
	pf.BoolVar(&o.flags.Log.JSON, "log-json", false, "log in JSON")
	pf.StringVar(&o.flags.MetricsTextfile, "metrics-textfile", "",
		"write Prometheus metrics to this file on exit")
	_ = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	_ = cmd.MarkPersistentFlagFilename("keystore", "pem", "p12", "pfx")

	cmd.AddCommand(
		newSignCommand(o),
		newClientSecretCommand(o),
		newAlgorithmsCommand(o),
	)
	return cmd
}

// setup loads the configuration file, applies changed flags over it and
// builds the logger and metrics registry.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg := DefaultConfig()
	if o.configPath != "" {
		loaded, err := LoadConfig(o.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	o.cfg = overlayFlags(cfg, o.flags, cmd.Flags().Changed)

	logger, err := newLogger(o.cfg.Log, o.stderr)
	if err != nil {
		return err
	}
	o.logger = logger
	o.registry = prometheus.NewRegistry()
	o.metrics = esiasign.NewPrometheusMetricsRecorderWithRegistry(o.registry)
	return nil
}

// overlayFlags copies each flag the user set onto cfg.
func overlayFlags(cfg, flags Config, changed func(string) bool) Config {
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	set("keystore-type", func() { cfg.KeyStore.Type = flags.KeyStore.Type })
	set("keystore", func() { cfg.KeyStore.Path = flags.KeyStore.Path })
	set("pkcs11-module", func() { cfg.KeyStore.Module = flags.KeyStore.Module })
	set("pkcs11-token", func() { cfg.KeyStore.Token = flags.KeyStore.Token })
	set("store-password-env", func() { cfg.KeyStore.PasswordEnv = flags.KeyStore.PasswordEnv })
	set("key-password-env", func() { cfg.KeyPasswordEnv = flags.KeyPasswordEnv })
	set("alias", func() { cfg.Alias = flags.Alias })
	set("algorithm", func() { cfg.Algorithm = flags.Algorithm })
	set("provider", func() { cfg.Provider = flags.Provider })
	set("chain", func() { cfg.Chain = flags.Chain })
	set("signing-time", func() { cfg.SigningTime = flags.SigningTime })
	set("log-level", func() { cfg.Log.Level = flags.Log.Level })
	set("log-json", func() { cfg.Log.JSON = flags.Log.JSON })
	set("metrics-textfile", func() { cfg.MetricsTextfile = flags.MetricsTextfile })
	return cfg
}

// newSigner validates the configuration and builds a Signer whose key store
// is opened on first use.
func (o *rootOptions) newSigner(detached bool) (*esiasign.Signer, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	chain, err := esiasign.ParseChainMode(o.cfg.Chain)
	if err != nil {
		return nil, err
	}
	b := esiasign.NewBuilder().
		WithKeyStore(o.keyStore).
		WithSigningAlias(esiasign.Static(o.cfg.Alias)).
		WithKeyPassword(esiasign.PasswordFromEnv(o.cfg.keyPasswordEnv())).
		WithAlgorithm(esiasign.Static(o.cfg.Algorithm)).
		WithProvider(esiasign.Static(o.cfg.Provider)).
		WithDetached(esiasign.Static(detached)).
		WithChainMode(chain).
		WithLogger(o.logger).
		WithMetrics(o.metrics)
	if !o.cfg.SigningTime {
		b.WithoutSigningTime()
	}
	return b.Build()
}

// keyStore opens the configured store once per invocation.
func (o *rootOptions) keyStore() (esiasign.KeyStore, error) {
	if o.store != nil {
		return o.store, nil
	}
	ks := o.cfg.KeyStore
	switch ks.Type {
	case KeyStorePKCS11:
		pin, err := esiasign.FromEnv(ks.PasswordEnv)()
		if err != nil {
			return nil, err
		}
		s, err := pkcs11.Open(pkcs11.Config{Module: ks.Module, TokenLabel: ks.Token, Pin: pin})
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, s.Close)
		o.store = s
	case KeyStorePKCS8:
		s, err := pkcs8.OpenFile(ks.Path)
		if err != nil {
			return nil, err
		}
		o.store = s
	default:
		password, err := esiasign.PasswordFromEnv(ks.PasswordEnv)()
		if err != nil {
			return nil, err
		}
		defer clear(password)
		s, err := pkcs12.OpenFile(ks.Path, password)
		if err != nil {
			return nil, err
		}
		o.store = s
	}
	o.logger.Debug("key store opened",
		zap.String("type", ks.Type),
		zap.String("path", ks.Path),
		zap.String("token", ks.Token))
	return o.store, nil
}

// close releases opened stores and writes the metrics textfile.
func (o *rootOptions) close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	if o.registry != nil && o.cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(o.cfg.MetricsTextfile, o.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if o.logger != nil {
		_ = o.logger.Sync()
	}
	return errors.Join(errs...)
}
