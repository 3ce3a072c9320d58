// Package config loads the pairmesh-cli configuration.
//
// The file lives at ~/.pairmesh/cli.yaml. Values resolve in the order
// flags, PAIRMESH_* environment variables, file, defaults.
package config
