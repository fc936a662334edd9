// Package server wires the nghttpx components together and runs them.
//
// Run performs the startup sequence in a fixed order and then serves until
// its context is canceled:
//
//	cfg, err := server.Build(builder)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := cli.SetupSignalHandler(context.Background())
//	defer stop()
//	return server.Run(ctx, cfg, server.WithLogger(logger))
//
// Every failure is returned as *Error with a Kind naming the step that
// failed: configuration, resolution, bind, tls load, daemonize, pid file,
// privilege or worker. Nothing in this package exits the process.
//
// When telemetry.metrics.listen_address is set, the metrics handler and
// the /healthz and /readyz probes are served there.
package server
