// nghttpx is a TLS-terminating HTTP/2 and HTTP/1.1 proxy.
//
// It binds IPv6 and IPv4 listeners, selects frontend certificates by SNI,
// detaches into the background on request, drops root privileges and then
// forwards every request to a single backend, optionally through an HTTP
// CONNECT proxy.
//
// Usage:
//
//	# Reverse proxy on :3000 with TLS, backend on 127.0.0.1:80
//	nghttpx run server.key server.crt
//
//	# Cleartext frontend, HTTP/2 to a TLS backend
//	nghttpx run --frontend-no-tls --http2-bridge --backend backend.example,443
//
//	# Show the configuration that would be used
//	nghttpx validate --conf /etc/nghttpx/nghttpx.yaml
//
//	# Show which host names a certificate is served for
//	nghttpx certs info server.crt
package main

func main() {
	Execute()
}
