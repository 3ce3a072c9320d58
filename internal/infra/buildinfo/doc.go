// Package buildinfo provides build information for PairMesh.
//
// Version, commit and build time are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/pairmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// The Go version comes from the runtime. UserAgent formats the value the
// server and CLI send on outbound HTTP requests.
package buildinfo
