/*
Package tls builds the frontend TLS state of nghttpx and the client TLS
context used towards the backend.

# Certificate Dispatch

A Dispatcher serves a default certificate plus any number of
subcertificates chosen by SNI:

	d, err := tls.BuildDispatcher("server.key", "server.crt",
		[]tls.KeyCertPair{
			{KeyFile: "a.key", CertFile: "a.crt"},
			{KeyFile: "wild.key", CertFile: "wild.crt"},
		},
		tls.ServerOptions{MinVersion: "1.2", NextProtos: []string{"h2", "http/1.1"}},
	)
	if err != nil {
		return err
	}

	ln = cryptotls.NewListener(ln, d.ServerConfig())

Subcertificates are indexed under their SAN DNS names, or their common
name when they have none. Exact names win over "*.suffix" wildcards, and
handshakes whose SNI matches nothing get the default certificate.

# Client Context

In client mode and HTTP/2 bridge mode the backend connection uses TLS:

	cfg, err := tls.NewClientConfig(tls.ClientOptions{
		ServerName: "backend.example",
		CACert:     "/etc/nghttpx/ca.pem",
		NextProtos: []string{"h2"},
	})

# Change Warnings

Dispatch state is never swapped at runtime. A Watcher logs a warning when a
served file changes so operators know a restart is needed.
*/
package tls
