package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Credential is the issuer's signing material extracted from a .p12 keystore.
// The private key lives in process memory only and is never written back out.
type Credential struct {
	Key       *rsa.PrivateKey
	KeyID     string
	NotBefore time.Time
	NotAfter  time.Time
}

// ValidAt reports whether the certificate window covers the given instant.
func (c *Credential) ValidAt(now time.Time) bool {
	return !now.Before(c.NotBefore) && !now.After(c.NotAfter)
}

// LoadKeystore reads and decodes a .p12 keystore file.
func LoadKeystore(path, password string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}
	return DecodeKeystore(data, password)
}

// DecodeKeystore extracts the private key and certificate from .p12 bytes.
// The key identifier is the certificate serial number, which the authority
// can correlate with the registered signing certificate.
func DecodeKeystore(data []byte, password string) (*Credential, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode keystore: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keystore key is %T, RSA required", key)
	}
	if cert == nil {
		return nil, fmt.Errorf("keystore contains no certificate")
	}

	return &Credential{
		Key:       rsaKey,
		KeyID:     certKeyID(cert),
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
	}, nil
}

// certKeyID is split out so tests can build credentials from generated certs.
func certKeyID(cert *x509.Certificate) string {
	return fmt.Sprintf("%X", cert.SerialNumber)
}
