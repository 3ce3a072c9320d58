// Package repl is the interactive chat loop of pairmesh-cli.
//
// Plain lines are sent to the paired peer. Lines starting with a slash
// are commands: /status, /leave, /quit and /help. A unique prefix of a
// command is accepted, so /l means /leave. Updates from the session
// agent are printed as they arrive.
package repl
