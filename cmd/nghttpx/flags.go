package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/187j3x1/nghttp2/pkg/config"
)

// proxyFlags holds the command-line overrides shared by run and validate.
// A flag only overrides the configuration when it was given explicitly.
type proxyFlags struct {
	frontend         string
	backend          string
	backlog          int
	frontendNoTLS    bool
	backendNoTLS     bool
	backendIPv4      bool
	backendIPv6      bool
	requireDualStack bool

	http2Proxy  bool
	http2Bridge bool
	clientProxy bool
	client      bool

	frontendReadTimeout      time.Duration
	frontendWriteTimeout     time.Duration
	frontendHTTP2ReadTimeout time.Duration
	backendReadTimeout       time.Duration
	backendWriteTimeout      time.Duration
	backendKeepAliveTimeout  time.Duration

	maxConcurrentStreams uint32
	frontendWindowBits   int
	backendWindowBits    int

	readRate   int64
	readBurst  int64
	writeRate  int64
	writeBurst int64

	ciphers              string
	honorCipherOrder     bool
	minVersion           string
	npnList              string
	verifyClient         bool
	verifyClientCACert   string
	privateKeyPasswdFile string
	subcerts             []string
	watchCertificates    bool

	cacert               string
	insecure             bool
	clientPrivateKeyFile string
	clientCertFile       string
	backendHTTPProxyURI  string
	backendTLSSNIField   string

	addXForwardedFor bool
	noVia            bool
	accessLog        bool
	syslog           bool
	syslogFacility   string

	workers int
	user    string
	pidFile string
	daemon  bool

	metricsAddress string
}

// register adds the proxy flags to cmd.
func (f *proxyFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()

	fs.StringVarP(&f.frontend, "frontend", "f", "", "frontend address as HOST,PORT (default 0.0.0.0,3000)")
	fs.StringVarP(&f.backend, "backend", "b", "", "backend address as HOST,PORT (default 127.0.0.1,80)")
	fs.IntVar(&f.backlog, "backlog", 0, "listen backlog (default 256)")
	fs.BoolVar(&f.frontendNoTLS, "frontend-no-tls", false, "disable TLS on the frontend")
	fs.BoolVar(&f.backendNoTLS, "backend-no-tls", false, "disable TLS towards the backend")
	fs.BoolVar(&f.backendIPv4, "backend-ipv4", false, "resolve the backend to IPv4 only")
	fs.BoolVar(&f.backendIPv6, "backend-ipv6", false, "resolve the backend to IPv6 only")
	fs.BoolVar(&f.requireDualStack, "require-dual-stack", false, "fail unless both IPv6 and IPv4 listeners are bound")

	fs.BoolVarP(&f.http2Proxy, "http2-proxy", "s", false, "forward proxy with a TLS frontend")
	fs.BoolVar(&f.http2Bridge, "http2-bridge", false, "HTTP/2 over TLS to the backend")
	fs.BoolVarP(&f.clientProxy, "client-proxy", "p", false, "cleartext forward proxy with an HTTP/2 backend")
	fs.BoolVar(&f.client, "client", false, "cleartext frontend with an HTTP/2 backend")

	fs.DurationVar(&f.frontendReadTimeout, "frontend-read-timeout", 0, "frontend read timeout (default 180s)")
	fs.DurationVar(&f.frontendWriteTimeout, "frontend-write-timeout", 0, "frontend write timeout (default 60s)")
	fs.DurationVar(&f.frontendHTTP2ReadTimeout, "frontend-http2-read-timeout", 0, "frontend HTTP/2 idle timeout (default 180s)")
	fs.DurationVar(&f.backendReadTimeout, "backend-read-timeout", 0, "backend read timeout (default 900s)")
	fs.DurationVar(&f.backendWriteTimeout, "backend-write-timeout", 0, "backend write timeout (default 60s)")
	fs.DurationVar(&f.backendKeepAliveTimeout, "backend-keep-alive-timeout", 0, "backend idle connection timeout (default 60s)")

	fs.Uint32VarP(&f.maxConcurrentStreams, "http2-max-concurrent-streams", "c", 0, "HTTP/2 streams per frontend session (default 100)")
	fs.IntVar(&f.frontendWindowBits, "frontend-http2-window-bits", 0, "frontend HTTP/2 stream window size is 2**N-1 (default 16)")
	fs.IntVar(&f.backendWindowBits, "backend-http2-window-bits", 0, "backend HTTP/2 stream window size is 2**N-1 (default 16)")

	fs.Int64Var(&f.readRate, "read-rate", 0, "per-connection read rate in bytes per second, 0 for unlimited")
	fs.Int64Var(&f.readBurst, "read-burst", 0, "per-connection read burst in bytes, 0 for unlimited")
	fs.Int64Var(&f.writeRate, "write-rate", 0, "per-connection write rate in bytes per second, 0 for unlimited")
	fs.Int64Var(&f.writeBurst, "write-burst", 0, "per-connection write burst in bytes, 0 for unlimited")

	fs.StringVar(&f.ciphers, "ciphers", "", "comma separated TLS cipher suites")
	fs.BoolVar(&f.honorCipherOrder, "honor-cipher-order", false, "accepted for compatibility")
	fs.StringVar(&f.minVersion, "tls-min-version", "", "minimum TLS version: 1.2 or 1.3")
	fs.StringVar(&f.npnList, "npn-list", "", "comma separated ALPN protocols (default h2,http/1.1)")
	fs.BoolVar(&f.verifyClient, "verify-client", false, "require a client certificate")
	fs.StringVar(&f.verifyClientCACert, "verify-client-cacert", "", "CA bundle for client certificates")
	fs.StringVar(&f.privateKeyPasswdFile, "private-key-passwd-file", "", "file holding the private key passphrase")
	fs.StringArrayVar(&f.subcerts, "subcert", nil, "additional KEYPATH:CERTPATH selected by SNI (repeatable)")
	fs.BoolVar(&f.watchCertificates, "watch-certificates", false, "warn when a served certificate changes on disk")

	fs.StringVar(&f.cacert, "cacert", "", "CA bundle for the backend certificate")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "skip backend certificate verification")
	fs.StringVar(&f.clientPrivateKeyFile, "client-private-key-file", "", "client key presented to the backend")
	fs.StringVar(&f.clientCertFile, "client-cert-file", "", "client certificate presented to the backend")
	fs.StringVar(&f.backendHTTPProxyURI, "backend-http-proxy-uri", "", "reach the backend through this HTTP proxy with CONNECT")
	fs.StringVar(&f.backendTLSSNIField, "backend-tls-sni-field", "", "SNI host name sent to the backend")

	fs.BoolVar(&f.addXForwardedFor, "add-x-forwarded-for", false, "append the client address to X-Forwarded-For")
	fs.BoolVar(&f.noVia, "no-via", false, "do not add Via headers")
	fs.BoolVarP(&f.accessLog, "accesslog", "L", false, "log one record per request")
	fs.BoolVar(&f.syslog, "syslog", false, "send logs to syslog")
	fs.StringVar(&f.syslogFacility, "syslog-facility", "", "syslog facility (default daemon)")

	fs.IntVarP(&f.workers, "workers", "n", 0, "number of worker loops (default 1)")
	fs.StringVar(&f.user, "user", "", "switch to this user after binding when started as root")
	fs.StringVar(&f.pidFile, "pid-file", "", "write the process id to this file")
	fs.BoolVarP(&f.daemon, "daemon", "D", false, "run in the background")

	fs.StringVar(&f.metricsAddress, "metrics-address", "", "serve metrics and health probes on this address")
}

// overrides parses the flag values and the positional PRIVATE_KEY CERT
// arguments into a function that applies them.
func (f *proxyFlags) overrides(cmd *cobra.Command, args []string) (func(*config.Config), error) {
	changed := cmd.Flags().Changed

	if len(args) != 0 && len(args) != 2 {
		return nil, fmt.Errorf("expected PRIVATE_KEY and CERT, got %d positional arguments", len(args))
	}

	var (
		frontendHost, backendHost string
		frontendPort, backendPort int
		err                       error
	)
	if changed("frontend") {
		if frontendHost, frontendPort, err = config.ParseHostPort(f.frontend); err != nil {
			return nil, fmt.Errorf("--frontend: %w", err)
		}
	}
	if changed("backend") {
		if backendHost, backendPort, err = config.ParseHostPort(f.backend); err != nil {
			return nil, fmt.Errorf("--backend: %w", err)
		}
	}

	subcerts := make([]config.SubcertConfig, 0, len(f.subcerts))
	for _, s := range f.subcerts {
		sc, err := parseSubcert(s)
		if err != nil {
			return nil, err
		}
		subcerts = append(subcerts, sc)
	}

	return func(c *config.Config) {
		if changed("frontend") {
			c.Frontend.Host, c.Frontend.Port = frontendHost, frontendPort
		}
		if changed("backend") {
			c.Backend.Host, c.Backend.Port = backendHost, backendPort
		}
		if changed("backlog") {
			c.Frontend.Backlog = f.backlog
		}
		if changed("frontend-no-tls") {
			c.Frontend.NoTLS = f.frontendNoTLS
		}
		if changed("backend-no-tls") {
			c.Backend.NoTLS = f.backendNoTLS
		}
		if changed("backend-ipv4") {
			c.Backend.IPv4 = f.backendIPv4
		}
		if changed("backend-ipv6") {
			c.Backend.IPv6 = f.backendIPv6
		}
		if changed("require-dual-stack") {
			c.Frontend.RequireDualStack = f.requireDualStack
		}

		if changed("http2-proxy") {
			c.Mode.HTTP2Proxy = f.http2Proxy
		}
		if changed("http2-bridge") {
			c.Mode.HTTP2Bridge = f.http2Bridge
		}
		if changed("client-proxy") {
			c.Mode.ClientProxy = f.clientProxy
		}
		if changed("client") {
			c.Mode.Client = f.client
		}

		if changed("frontend-read-timeout") {
			c.Frontend.ReadTimeout = f.frontendReadTimeout
		}
		if changed("frontend-write-timeout") {
			c.Frontend.WriteTimeout = f.frontendWriteTimeout
		}
		if changed("frontend-http2-read-timeout") {
			c.Frontend.HTTP2ReadTimeout = f.frontendHTTP2ReadTimeout
		}
		if changed("backend-read-timeout") {
			c.Backend.ReadTimeout = f.backendReadTimeout
		}
		if changed("backend-write-timeout") {
			c.Backend.WriteTimeout = f.backendWriteTimeout
		}
		if changed("backend-keep-alive-timeout") {
			c.Backend.KeepAliveTimeout = f.backendKeepAliveTimeout
		}

		if changed("http2-max-concurrent-streams") {
			c.HTTP2.MaxConcurrentStreams = f.maxConcurrentStreams
		}
		if changed("frontend-http2-window-bits") {
			c.HTTP2.WindowBits = f.frontendWindowBits
		}
		if changed("backend-http2-window-bits") {
			c.HTTP2.BackendWindowBits = f.backendWindowBits
		}

		if changed("read-rate") {
			c.RateLimit.ReadRate = f.readRate
		}
		if changed("read-burst") {
			c.RateLimit.ReadBurst = f.readBurst
		}
		if changed("write-rate") {
			c.RateLimit.WriteRate = f.writeRate
		}
		if changed("write-burst") {
			c.RateLimit.WriteBurst = f.writeBurst
		}

		if changed("ciphers") {
			c.TLS.Ciphers = f.ciphers
		}
		if changed("honor-cipher-order") {
			c.TLS.HonorCipherOrder = f.honorCipherOrder
		}
		if changed("tls-min-version") {
			c.TLS.MinVersion = f.minVersion
		}
		if changed("npn-list") {
			c.TLS.NPNList = config.SplitList(f.npnList)
		}
		if changed("verify-client") {
			c.TLS.VerifyClient = f.verifyClient
		}
		if changed("verify-client-cacert") {
			c.TLS.VerifyClientCACert = f.verifyClientCACert
		}
		if changed("private-key-passwd-file") {
			c.TLS.PrivateKeyPasswdFile = f.privateKeyPasswdFile
		}
		if changed("subcert") {
			c.TLS.Subcerts = subcerts
		}
		if changed("watch-certificates") {
			c.TLS.WatchCertificates = f.watchCertificates
		}

		if changed("cacert") {
			c.TLS.CACert = f.cacert
		}
		if changed("insecure") {
			c.TLS.Insecure = f.insecure
		}
		if changed("client-private-key-file") {
			c.TLS.ClientPrivateKeyFile = f.clientPrivateKeyFile
		}
		if changed("client-cert-file") {
			c.TLS.ClientCertFile = f.clientCertFile
		}
		if changed("backend-http-proxy-uri") {
			c.Backend.HTTPProxyURI = f.backendHTTPProxyURI
		}
		if changed("backend-tls-sni-field") {
			c.Backend.TLSSNIField = f.backendTLSSNIField
		}

		if changed("add-x-forwarded-for") {
			c.Backend.AddXForwardedFor = f.addXForwardedFor
		}
		if changed("no-via") {
			c.Backend.NoVia = f.noVia
		}
		if changed("accesslog") {
			c.Telemetry.Logging.AccessLog = f.accessLog
		}
		if changed("syslog") {
			c.Telemetry.Logging.Syslog = f.syslog
		}
		if changed("syslog-facility") {
			c.Telemetry.Logging.SyslogFacility = f.syslogFacility
		}

		if changed("workers") {
			c.Process.Workers = f.workers
		}
		if changed("user") {
			c.Process.User = f.user
		}
		if changed("pid-file") {
			c.Process.PIDFile = f.pidFile
		}
		if changed("daemon") {
			c.Process.Daemon = f.daemon
		}

		if changed("metrics-address") {
			c.Telemetry.Metrics.ListenAddress = f.metricsAddress
		}

		if len(args) == 2 {
			c.TLS.PrivateKeyFile, c.TLS.CertFile = args[0], args[1]
		}
	}, nil
}

// parseSubcert parses KEYPATH:CERTPATH.
func parseSubcert(s string) (config.SubcertConfig, error) {
	key, cert, ok := strings.Cut(s, ":")
	if !ok || key == "" || cert == "" {
		return config.SubcertConfig{}, fmt.Errorf("--subcert %q: expected KEYPATH:CERTPATH", s)
	}
	return config.SubcertConfig{KeyFile: key, CertFile: cert}, nil
}
