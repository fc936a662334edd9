/*
Package security groups the proxy's transport security and credential
handling.

# TLS

Package tls loads frontend key pairs, selects a certificate per SNI host
name and builds the client TLS configuration used towards the
downstream:

	d, err := tls.BuildDispatcher(keyFile, certFile, subcerts, opts)
	if err != nil {
		return err
	}
	srvConf := d.ServerConfig()

# Secrets

Package secrets resolves ${secret:name} references, such as the
credentials embedded in backend.http_proxy_uri, from environment
variables and secret files:

	m := secrets.NewManager(logger,
		secrets.NewEnvProvider(secrets.DefaultEnvPrefix, nil),
	)
	uri, err := m.Expand(ctx, "http://${secret:proxy-user}:${secret:proxy-password}@proxy:3128")
*/
package security
