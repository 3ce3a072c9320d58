// Package command defines the pairmesh-cli commands on urfave/cli/v2.
//
//   - root.go: the application, global flags and config resolution
//   - chat.go: the interactive chat session
//   - system.go: status, health and gc over HTTP or the local socket
//   - config.go: show and initialise the CLI config file
//   - version.go: build information
package command
