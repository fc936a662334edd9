// Package health serves liveness and readiness probes for nghttpx.
//
// The probes are mounted on the metrics listener, never on the proxy
// frontend:
//
//   - /healthz: liveness, 200 while the process runs
//   - /readyz: readiness, 200 when every registered check passes
//
// The server registers three checks: "listeners" (at least one socket is
// bound), "lifecycle" (the acceptance loop is running) and "backend" (a
// TCP connection to the downstream, or its CONNECT proxy, succeeds).
//
// Usage:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("listeners", func(ctx context.Context) error {
//	    if set.Len() == 0 {
//	        return errors.New("no listeners")
//	    }
//	    return nil
//	})
//	mux := http.NewServeMux()
//	checker.Register(mux)
package health
