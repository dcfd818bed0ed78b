// Package shutdown coordinates process termination for geminid.
//
// A Handler waits for SIGINT/SIGTERM, an explicit Trigger, or the end of a
// parent context, then runs the registered hooks in reverse registration
// order under a shared timeout:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("gemini", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
