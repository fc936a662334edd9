// Package secrets resolves ${secret:name} references in configuration
// values, so credentials such as the password of the backend CONNECT proxy
// need not be written into the configuration file.
//
// Values come from environment variables (NGHTTPX_SECRET_NAME) or from
// one file per secret in a mounted directory:
//
//	m := secrets.NewManager(logger,
//	    secrets.NewEnvProvider(secrets.DefaultEnvPrefix, nil),
//	    fileProvider,
//	)
//	uri, err := m.Expand(ctx, "http://proxy:${secret:proxy-password}@proxy.example:3128")
package secrets
