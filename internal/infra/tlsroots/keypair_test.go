package tlsroots

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

func TestLoadKeyPair(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "first")

	k, err := LoadKeyPair(certFile, keyFile, logger.Nop())
	if err != nil {
		t.Fatalf("LoadKeyPair() error = %v", err)
	}

	cert, err := k.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	if !k.Owns(certFile) || !k.Owns(filepath.Join(dir, ".", "server.key")) {
		t.Error("Owns() = false for the pair's own files")
	}
	if k.Owns(filepath.Join(dir, "server.yaml")) {
		t.Error("Owns() = true for an unrelated file")
	}
	if got := len(k.Files()); got != 2 {
		t.Errorf("Files() = %d entries, want 2", got)
	}
}

func TestLoadKeyPair_Missing(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadKeyPair(filepath.Join(dir, "a.crt"), filepath.Join(dir, "a.key"), logger.Nop()); err == nil {
		t.Error("LoadKeyPair() error = nil, want error")
	}
}

func TestKeyPair_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "first")
	k, err := LoadKeyPair(certFile, keyFile, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	before, _ := k.GetCertificate(nil)

	writeKeyPair(t, dir, "second")
	if err := k.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	after, _ := k.GetCertificate(nil)
	if bytes.Equal(before.Certificate[0], after.Certificate[0]) {
		t.Error("certificate unchanged after Reload()")
	}
}

func TestKeyPair_ReloadKeepsCurrentOnFailure(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeKeyPair(t, dir, "first")
	k, err := LoadKeyPair(certFile, keyFile, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	before, _ := k.GetCertificate(nil)

	if err := writeFile(keyFile, "broken"); err != nil {
		t.Fatal(err)
	}
	if err := k.Reload(); err == nil {
		t.Fatal("Reload() error = nil, want error")
	}
	after, _ := k.GetCertificate(nil)
	if after != before {
		t.Error("certificate replaced by a failed reload")
	}
}

func TestKeyPair_ServesTLS(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir(), "serve")
	k, err := LoadKeyPair(certFile, keyFile, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.Listener = tls.NewListener(srv.Listener, k.ServerConfig())
	srv.Start()
	defer srv.Close()

	clientTLS, err := ClientConfigFor(certFile)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}
	resp, err := client.Get("https://" + srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("GET over TLS error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
