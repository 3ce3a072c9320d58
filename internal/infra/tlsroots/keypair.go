package tlsroots

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// KeyPair holds the server certificate. Reload swaps it without
// restarting the listener.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   logger.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// LoadKeyPair loads certFile and keyFile.
func LoadKeyPair(certFile, keyFile string, log logger.Logger) (*KeyPair, error) {
	if log == nil {
		log = logger.Default()
	}
	k := &KeyPair{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		logger:   logger.Component(log, "tls"),
	}
	if err := k.load(); err != nil {
		return nil, err
	}
	return k, nil
}

// Files returns the certificate and key paths.
func (k *KeyPair) Files() []string {
	return []string{k.certFile, k.keyFile}
}

// Owns reports whether path is the certificate or the key.
func (k *KeyPair) Owns(path string) bool {
	path = filepath.Clean(path)
	return path == k.certFile || path == k.keyFile
}

// Reload reads both files again. On failure the current certificate
// stays in use.
func (k *KeyPair) Reload() error {
	if err := k.load(); err != nil {
		k.logger.Error("certificate reload failed", "cert_file", k.certFile, "error", err)
		return err
	}
	k.logger.Info("certificate reloaded", "cert_file", k.certFile)
	return nil
}

func (k *KeyPair) load() error {
	cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	k.mu.Lock()
	k.cert = &cert
	k.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (k *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cert, nil
}

// ServerConfig returns a server TLS config backed by the key pair.
func (k *KeyPair) ServerConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: k.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
