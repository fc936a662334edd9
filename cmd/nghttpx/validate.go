package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/cli"
	"github.com/187j3x1/nghttp2/pkg/config"
	"github.com/187j3x1/nghttp2/pkg/resolver"
)

var validateFlags struct {
	proxy  proxyFlags
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate [flags] [PRIVATE_KEY CERT]",
	Short: "Validate the configuration",
	Long: `Assemble and validate the configuration exactly as run would, then print
the resolved operating mode and derived settings. No sockets are opened and
no certificates are loaded.

Examples:
  # Check the default configuration file
  nghttpx validate

  # Check a file with overrides, as JSON
  nghttpx validate --conf nghttpx.yaml --client --format json`,
	Args: cobra.MaximumNArgs(2),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateFlags.proxy.register(validateCmd)
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, yaml")
}

// configSummary is the printable outcome of validate.
type configSummary struct {
	Source             string `json:"source,omitempty" yaml:"source,omitempty"`
	Mode               string `json:"mode" yaml:"mode"`
	ClientMode         bool   `json:"client_mode" yaml:"client_mode"`
	DownstreamProtocol string `json:"downstream_protocol" yaml:"downstream_protocol"`
	Frontend           string `json:"frontend" yaml:"frontend"`
	FrontendTLS        bool   `json:"frontend_tls" yaml:"frontend_tls"`
	Backend            string `json:"backend" yaml:"backend"`
	BackendTLS         bool   `json:"backend_tls" yaml:"backend_tls"`
	BackendFamily      string `json:"backend_family" yaml:"backend_family"`
	Proxy              string `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Subcerts           int    `json:"subcerts" yaml:"subcerts"`
	Workers            int    `json:"workers" yaml:"workers"`
	Daemon             bool   `json:"daemon" yaml:"daemon"`
	UID                int    `json:"uid" yaml:"uid"`
	GID                int    `json:"gid" yaml:"gid"`
}

func summarize(cfg *config.Config, source string) configSummary {
	d := cfg.Derived
	s := configSummary{
		Source:             source,
		Mode:               d.Mode.String(),
		ClientMode:         d.ClientMode,
		DownstreamProtocol: d.DownstreamProtocol.String(),
		Frontend:           resolver.HostPort(cfg.Frontend.Host, cfg.Frontend.Port),
		FrontendTLS:        d.FrontendTLS,
		Backend:            resolver.HostPort(cfg.Backend.Host, cfg.Backend.Port),
		BackendTLS:         d.BackendTLS,
		BackendFamily:      d.BackendFamily.String(),
		Subcerts:           len(cfg.TLS.Subcerts),
		Workers:            cfg.Process.Workers,
		Daemon:             cfg.Process.Daemon,
		UID:                d.UID,
		GID:                d.GID,
	}
	if d.Proxy != nil {
		s.Proxy = resolver.HostPort(d.Proxy.Host, d.Proxy.Port)
	}
	return s
}

// String renders the summary for the text formatter.
func (s configSummary) String() string {
	var b strings.Builder
	if s.Source != "" {
		fmt.Fprintf(&b, "Configuration file: %s\n", s.Source)
	}
	fmt.Fprintf(&b, "Mode:                %s\n", s.Mode)
	fmt.Fprintf(&b, "Downstream protocol: %s\n", s.DownstreamProtocol)
	fmt.Fprintf(&b, "Frontend:            %s (tls=%t)\n", s.Frontend, s.FrontendTLS)
	fmt.Fprintf(&b, "Backend:             %s (tls=%t, family=%s)\n", s.Backend, s.BackendTLS, s.BackendFamily)
	if s.Proxy != "" {
		fmt.Fprintf(&b, "Backend proxy:       %s\n", s.Proxy)
	}
	fmt.Fprintf(&b, "Subcertificates:     %d\n", s.Subcerts)
	fmt.Fprintf(&b, "Workers:             %d\n", s.Workers)
	fmt.Fprintf(&b, "Daemon:              %t\n", s.Daemon)
	if s.UID >= 0 {
		fmt.Fprintf(&b, "Run as:              uid=%d gid=%d\n", s.UID, s.GID)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(validateFlags.format))
	if err != nil {
		return cli.NewArgError("validate", err.Error())
	}

	cfg, source, err := loadConfig(cmd, &validateFlags.proxy, args)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	out := cmd.OutOrStdout()
	if err := formatter.FormatTo(out, summarize(cfg, source)); err != nil {
		return err
	}
	return nil
}
