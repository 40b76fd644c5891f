// Package omp is the root of go-omp, a client for the OpenVAS Management
// Protocol (OMP) spoken by an OpenVAS manager over TLS.
//
// # Architecture
//
// The library is organized into layers:
//
//	┌─────────────────────────────────────────────────────────┐
//	│  client/          Config, dial with retry, session      │
//	├─────────────────────────────────────────────────────────┤
//	│  omp/             Commands, status codes, task pollers  │
//	├─────────────────────────────────────────────────────────┤
//	│  omp/transport/   TLS connection and document reader    │
//	├─────────────────────────────────────────────────────────┤
//	│  entity/          Entity tree and streaming parser      │
//	└─────────────────────────────────────────────────────────┘
//
// # Quick Start
//
//	cfg := client.DefaultConfig()
//	cfg.Host = "manager.example.com"
//	cfg.Username = "admin"
//	cfg.Password = os.Getenv("OMP_PASSWORD")
//
//	c, err := client.Dial(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	id, err := c.CreateTaskFromFile(ctx, "scan.rc", "nightly", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.StartTask(ctx, id); err != nil {
//	    log.Fatal(err)
//	}
//	err = c.WaitForTaskEnd(ctx, id)
package omp
