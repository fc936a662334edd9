package proxy

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/187j3x1/nghttp2/pkg/telemetry/logging"
)

// ServerName identifies the proxy in Via headers.
const ServerName = "nghttpx"

// forwardedHeaders are stripped by httputil.ReverseProxy before Rewrite
// runs; they are passed through unless the proxy appends its own value.
var forwardedHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

// handlerPolicy is the header and routing policy of the proxy handler.
type handlerPolicy struct {
	// forward is true in the forward proxy modes: requests carry their
	// target and are sent to the backend as is.
	forward bool

	// scheme and authority rewrite the request target in reverse modes.
	scheme    string
	authority string

	addXForwardedFor bool
	noVia            bool

	// inject, if set, writes trace context into the outbound headers.
	inject func(ctx context.Context, h http.Header)
}

// newHandler builds the reverse proxy handler on top of transport.
func newHandler(policy handlerPolicy, transport http.RoundTripper, logger *slog.Logger) http.Handler {
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			rewrite(policy, pr)
		},
		Transport: transport,
		ModifyResponse: func(resp *http.Response) error {
			if !policy.noVia {
				resp.Header.Add("Via", viaValue(resp.ProtoMajor, resp.ProtoMinor))
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			status := statusForError(err)
			logger.WarnContext(r.Context(), "backend request failed",
				append(logging.Attrs(r.Context()),
					"method", r.Method,
					"uri", r.RequestURI,
					"status", status,
					"error", err,
				)...,
			)
			w.WriteHeader(status)
		},
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodConnect {
			http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
			return
		}
		if policy.forward && r.URL.Host == "" && r.Host == "" {
			http.Error(w, "request target must name a host", http.StatusBadRequest)
			return
		}
		rp.ServeHTTP(w, r)
	})
}

// rewrite applies routing and the X-Forwarded-For and Via policy to the
// outbound request.
func rewrite(policy handlerPolicy, pr *httputil.ProxyRequest) {
	out := pr.Out

	if policy.forward {
		if out.URL.Host == "" {
			out.URL.Host = pr.In.Host
		}
		if out.URL.Scheme == "" {
			out.URL.Scheme = "http"
		}
	} else {
		out.URL.Scheme = policy.scheme
		out.URL.Host = policy.authority
	}
	out.Host = pr.In.Host

	for _, h := range forwardedHeaders {
		if v := pr.In.Header.Values(h); len(v) > 0 {
			out.Header[h] = append([]string(nil), v...)
		}
	}
	if policy.addXForwardedFor {
		if ip := clientIP(pr.In.RemoteAddr); ip != "" {
			prior := out.Header.Values("X-Forwarded-For")
			out.Header.Set("X-Forwarded-For", strings.Join(append(prior, ip), ", "))
		}
	}

	if !policy.noVia {
		out.Header.Add("Via", viaValue(pr.In.ProtoMajor, pr.In.ProtoMinor))
	}

	if policy.inject != nil {
		policy.inject(out.Context(), out.Header)
	}
}

// viaValue formats a Via entry for the given protocol version.
func viaValue(major, minor int) string {
	if major >= 2 {
		return strconv.Itoa(major) + " " + ServerName
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor) + " " + ServerName
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
