package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeKeyPair writes a self-signed certificate for 127.0.0.1 that can
// also act as its own root.
func writeKeyPair(t *testing.T, dir, cn string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{Organization: []string{"PairMesh Test"}, CommonName: cn},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestAppendPEM(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir(), "roots")
	certPEM, _ := os.ReadFile(certFile)
	keyPEM, _ := os.ReadFile(keyFile)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"certificate", certPEM, nil},
		{"certificate after key", append(append([]byte(nil), keyPEM...), certPEM...), nil},
		{"empty", nil, ErrNoCertsFound},
		{"not PEM", []byte("not a certificate"), ErrNoCertsFound},
		{"key only", keyPEM, ErrNoCertsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := appendPEM(x509.NewCertPool(), tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("appendPEM() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppendPEM_Corrupt(t *testing.T) {
	bad := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
	if err := appendPEM(x509.NewCertPool(), bad); err == nil || errors.Is(err, ErrNoCertsFound) {
		t.Errorf("appendPEM() error = %v, want parse error", err)
	}
}

func TestClientConfigFor(t *testing.T) {
	cfg, err := ClientConfigFor("")
	if err != nil || cfg != nil {
		t.Errorf("ClientConfigFor(\"\") = %v, %v, want nil, nil", cfg, err)
	}

	dir := t.TempDir()
	if _, err := ClientConfigFor(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("ClientConfigFor(missing) error = nil, want error")
	}

	notPEM := filepath.Join(dir, "ca.txt")
	os.WriteFile(notPEM, []byte("hello"), 0644)
	if _, err := ClientConfigFor(notPEM); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("ClientConfigFor(not PEM) error = %v, want %v", err, ErrNoCertsFound)
	}

	certFile, _ := writeKeyPair(t, t.TempDir(), "roots")
	cfg, err = ClientConfigFor(certFile)
	if err != nil {
		t.Fatalf("ClientConfigFor() error = %v", err)
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs = nil")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x, want TLS 1.2", cfg.MinVersion)
	}
}
