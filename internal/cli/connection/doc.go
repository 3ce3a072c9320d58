// Package connection talks to a running pairmesh-server on behalf of
// pairmesh-cli.
//
// HTTPClient calls the admin HTTP API with a bearer token. SocketClient
// sends one command line over the local management socket and decodes
// the JSON reply. Both satisfy Admin, so system commands work the same
// over either transport.
package connection
