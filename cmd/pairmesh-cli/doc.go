// Package main provides the entry point for pairmesh-cli.
//
// The CLI chats through a PairMesh server and manages it:
//
//	pairmesh-cli chat
//	pairmesh-cli system status -o json
//	pairmesh-cli --socket /tmp/pairmesh.sock system gc
package main
