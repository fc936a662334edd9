package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/cli"
	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/server"
	"github.com/187j3x1/nghttp2/pkg/telemetry/logging"
)

var rootFlags struct {
	conf      string
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "nghttpx",
	Short: "nghttpx - HTTP/2 proxy",
	Long: `nghttpx is a TLS-terminating proxy that speaks HTTP/2 and HTTP/1.1 on
the frontend and forwards requests to a single backend.

Operating modes:
  default        TLS frontend, HTTP/1.1 backend (reverse proxy)
  --http2-proxy  TLS frontend, forward proxy with absolute request URIs
  --http2-bridge TLS frontend, HTTP/2 backend over TLS
  --client       cleartext frontend, HTTP/2 backend over TLS
  --client-proxy cleartext forward proxy, HTTP/2 backend over TLS

Configuration is read from defaults, the YAML file, NGHTTPX_* environment
variables and command-line flags, in increasing precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loggedError marks an error that has already been written to the log.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }

func (e *loggedError) Unwrap() error { return e.err }

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		var logged *loggedError
		if !errors.As(err, &logged) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.conf, "conf", config.DefaultConfigPath, "configuration file path")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "log level: debug, info, warn, error (default warn)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "log format: text, json (default text)")
}

// loadConfig assembles the configuration from the file, the environment
// and the flags of cmd, then validates it. A missing default file is not
// an error; a missing file named with --conf is. source is the file that
// was read, if any.
func loadConfig(cmd *cobra.Command, flags *proxyFlags, args []string) (cfg *config.Config, source string, err error) {
	b := config.NewBuilder()

	explicit := cmd.Flags().Changed("conf")
	if err := b.LoadFile(rootFlags.conf, explicit); err != nil {
		return nil, "", &server.Error{Kind: server.KindConfiguration, Op: "failed to load configuration", Err: err}
	}
	if err := b.ApplyEnv(); err != nil {
		return nil, "", &server.Error{Kind: server.KindConfiguration, Op: "invalid environment override", Err: err}
	}

	apply, err := flags.overrides(cmd, args)
	if err != nil {
		return nil, "", &server.Error{Kind: server.KindConfiguration, Op: "invalid arguments", Err: err}
	}
	b.Apply(apply)

	changed := cmd.Flags().Changed
	b.Apply(func(c *config.Config) {
		if changed("log-level") {
			c.Telemetry.Logging.Level = rootFlags.logLevel
		}
		if changed("log-format") {
			c.Telemetry.Logging.Format = rootFlags.logFormat
		}
	})

	cfg, err = server.Build(b)
	if err != nil {
		return nil, "", err
	}
	return cfg, b.Source, nil
}

// newLogger creates the process logger from the logging configuration.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Telemetry.Logging
	return logging.New(logging.Config{
		Level:    lc.Level,
		Format:   lc.Format,
		Syslog:   lc.Syslog,
		Facility: lc.SyslogFacility,
	})
}
