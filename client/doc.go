// Package client opens authenticated OMP sessions.
//
// This is the recommended entry point for most users. It handles:
//   - Dialing the manager over TLS, with optional retry
//   - Authentication, repeated while the manager is still starting
//   - Session-scoped logging and wire capture
//
// # Quick Start
//
//	cfg := client.DefaultConfig()
//	cfg.Host = "manager.example.com"
//	cfg.Username = "admin"
//	cfg.Password = "secret"
//
//	c, err := client.Dial(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	id, err := c.CreateTaskFromFile(ctx, "scan.rc", "nightly", "")
//	if err == nil {
//	    err = c.StartTask(ctx, id)
//	}
//	if err == nil {
//	    err = c.WaitForTaskEnd(ctx, id)
//	}
package client
