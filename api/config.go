// Package api provides the HTTP surface for the Game Master turn lifecycle.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string
}
