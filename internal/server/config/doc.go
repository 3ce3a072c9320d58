// Package config holds the pairmesh-server settings: their defaults,
// validation and the redacted form written to logs.
//
// Values are filled by confloader from the YAML file, PAIRMESH_*
// variables and overrides. Only log.level, session.grace_window and the
// TLS certificate change at runtime; every other key needs a restart.
package config
