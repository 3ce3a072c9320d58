// Package tlsroots manages TLS material for both ends of a connection.
//
//   - roots.go: client trust, the system pool plus an optional CA file
//   - keypair.go: the server certificate, reloadable in place
//
// The key pair does not watch files itself; the server registers its
// files with the configuration watcher and calls Reload on change.
package tlsroots
