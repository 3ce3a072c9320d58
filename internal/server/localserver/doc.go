// Package localserver provides Unix socket server for local management.
//
// This package implements a local-only management interface via a Unix
// domain socket. Access is controlled by file system permissions (the
// socket is created 0600); there is no token check.
//
// Protocol: one command per line, one JSON reply per line:
//
//	-> status
//	<- {"ok":true,"data":{...}}
//
// Commands: status, health, gc, reload, drain [on|off], shutdown, help.
package localserver
