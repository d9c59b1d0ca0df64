// Package process supervises a long-running child process.
//
// The bridge uses it for host event sources that are command-line
// subscriptions, such as luna-send on webOS: the child prints one
// notification per line for as long as it runs.
//
// Features:
//   - Start/stop with SIGTERM to the process group, SIGKILL after a timeout
//   - Restart on unexpected exit after a fixed delay, optionally bounded
//   - Per-line stdout callback; stderr lines go to the logger
//   - Status and statistics for the query surface
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "luna-send",
//	    Binary:           "luna-send",
//	    Args:             []string{"-i", uri, `{"subscribe":true}`},
//	    RestartOnFailure: true,
//	    RestartDelay:     5 * time.Second,
//	    OnStdoutLine:     func(line string) { bridge.HandleForegroundPayload([]byte(line)) },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
