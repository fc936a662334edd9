package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/cli"
	"github.com/187j3x1/nghttp2/pkg/server"
)

var runFlags proxyFlags

var runCmd = &cobra.Command{
	Use:   "run [flags] [PRIVATE_KEY CERT]",
	Short: "Start the proxy",
	Long: `Start the proxy with the configuration assembled from the file, the
environment and the flags.

PRIVATE_KEY and CERT are required unless the frontend is cleartext
(--frontend-no-tls, --client or --client-proxy).

The server exits with status 0 after SIGINT or SIGTERM once in-flight
requests have finished, and with status 1 if any startup step fails.

Examples:
  # Reverse proxy with TLS on the default port 3000
  nghttpx run server.key server.crt

  # Several certificates chosen by SNI
  nghttpx run --subcert a.key:a.crt --subcert b.key:b.crt server.key server.crt

  # Forward proxy reaching the backend through a corporate proxy
  nghttpx run --http2-proxy --backend-http-proxy-uri http://user:pw@proxy:3128 server.key server.crt

  # Detach, write a PID file and run as nobody
  nghttpx run --daemon --pid-file /run/nghttpx.pid --user nobody server.key server.crt`,
	Args: cobra.MaximumNArgs(2),
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	cli.IgnoreSIGPIPE()

	cfg, source, err := loadConfig(cmd, &runFlags, args)
	if err != nil {
		// No configured logger exists yet.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("invalid configuration", "error", err)
		return &loggedError{err: err}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to create logger", "error", err)
		return &loggedError{err: err}
	}
	defer logger.Shutdown()
	if source != "" {
		logger.Info("loaded configuration", "path", source)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := cli.SetupSignalHandler(parent)
	defer stop()

	if err := server.Run(ctx, cfg,
		server.WithLogger(logger.Slog()),
		server.WithVersion(Version),
	); err != nil {
		logger.Error("nghttpx stopped",
			"kind", server.KindOf(err).String(),
			"error", err,
		)
		return &loggedError{err: err}
	}
	return nil
}
