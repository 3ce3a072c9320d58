// Package shutdown provides graceful shutdown for PairMesh.
//
// A Handler waits for SIGINT, SIGTERM or an explicit Trigger (the local
// socket "shutdown" command), then runs the registered hooks in reverse
// order under a shared timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(15*time.Second, log)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait()
package shutdown
