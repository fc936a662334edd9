package config

// Mode is the operating mode of the proxy.
type Mode int

const (
	// ModeReverse is the default: TLS frontend, HTTP/1.1 backend.
	ModeReverse Mode = iota
	// ModeHTTP2Proxy serves as a secure forward proxy over HTTP/2.
	ModeHTTP2Proxy
	// ModeHTTP2Bridge speaks HTTP/2 over TLS to the backend.
	ModeHTTP2Bridge
	// ModeClientProxy accepts cleartext forward proxy requests and relays
	// them over HTTP/2 to the backend.
	ModeClientProxy
	// ModeClient accepts cleartext HTTP/1.1 and relays over HTTP/2.
	ModeClient
)

// String returns the flag name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeHTTP2Proxy:
		return "http2-proxy"
	case ModeHTTP2Bridge:
		return "http2-bridge"
	case ModeClientProxy:
		return "client-proxy"
	case ModeClient:
		return "client"
	default:
		return "reverse"
	}
}

// ForwardProxy reports whether requests carry an absolute URI that names
// the origin.
func (m Mode) ForwardProxy() bool {
	return m == ModeHTTP2Proxy || m == ModeClientProxy
}

// Protocol is the downstream application protocol.
type Protocol int

const (
	ProtocolHTTP11 Protocol = iota
	ProtocolHTTP2
)

// String returns the ALPN identifier of the protocol.
func (p Protocol) String() string {
	if p == ProtocolHTTP2 {
		return "h2"
	}
	return "http/1.1"
}

// ModeResolution is the outcome of ResolveMode.
type ModeResolution struct {
	Mode               Mode
	ClientMode         bool
	DownstreamProtocol Protocol
}

// ResolveMode derives the operating mode from the mode flags.
//
// At most one flag may be set. When the proxy is not in client mode and
// frontend TLS is enabled, both the default private key and certificate
// must be configured. Errors are returned as ValidationError.
func ResolveMode(flags ModeConfig, frontendTLS bool, privateKeyFile, certFile string) (ModeResolution, error) {
	var res ModeResolution

	set := 0
	for _, on := range []bool{flags.HTTP2Proxy, flags.HTTP2Bridge, flags.ClientProxy, flags.Client} {
		if on {
			set++
		}
	}
	if set > 1 {
		return res, ValidationError{Errors: []FieldError{{
			Field:   "mode",
			Message: "http2_proxy, http2_bridge, client_proxy and client cannot be used at the same time",
		}}}
	}

	switch {
	case flags.HTTP2Proxy:
		res.Mode = ModeHTTP2Proxy
	case flags.HTTP2Bridge:
		res.Mode = ModeHTTP2Bridge
	case flags.ClientProxy:
		res.Mode = ModeClientProxy
	case flags.Client:
		res.Mode = ModeClient
	default:
		res.Mode = ModeReverse
	}

	res.ClientMode = flags.Client || flags.ClientProxy
	if res.ClientMode || flags.HTTP2Bridge {
		res.DownstreamProtocol = ProtocolHTTP2
	} else {
		res.DownstreamProtocol = ProtocolHTTP11
	}

	if !res.ClientMode && frontendTLS {
		var errs []FieldError
		if privateKeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "tls.private_key_file",
				Message: "private key is required when frontend TLS is enabled",
			})
		}
		if certFile == "" {
			errs = append(errs, FieldError{
				Field:   "tls.cert_file",
				Message: "certificate is required when frontend TLS is enabled",
			})
		}
		if len(errs) > 0 {
			return res, ValidationError{Errors: errs}
		}
	}

	return res, nil
}
