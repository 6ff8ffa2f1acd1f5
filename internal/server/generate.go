// Package server provides the development feed server: a local stand-in for
// the remote intelligence API that the sync engine talks to.
//
// The server layout follows:
//
//   - Server: Core server struct with lifecycle management
//   - Config: Server configuration with sensible defaults
//   - Router: Route registration and middleware chain
//   - Handlers: Feed, conflicts, and health handlers backed by fixtures
//
// Usage:
//
//	fx, err := fixtures.Load("feed.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.New(server.DefaultConfig(), fx, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":3000", srv.Handler())
package server

//go:generate gomarkdoc --output README.md .
