// Package logger is the structured logger shared by the server and the CLI.
//
// A thin Logger interface sits over log/slog. The level is process-wide
// and can be changed at runtime, which the server's config reload uses.
// Gateway connections and HTTP requests carry their IDs in the context;
// L(ctx) returns a logger already tagged with them.
//
// Every handler passes attributes through redaction: resume tokens (pmtk_)
// and their hashes (pmth_) are shortened to a hint, secret-looking keys
// are dropped, and message bodies are logged as a byte count only.
package logger
