package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"
)

// WriteTestCACert writes a self-signed CA certificate valid for one hour around now.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	writeSelfSigned(tb, &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "authrelay-test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}, path, "")
}

// WriteTestCertAndKey writes a self-signed leaf certificate usable for both
// server and client authentication, and its PKCS#1 key.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	writeSelfSigned(tb, &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "authrelay-test"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}, certPath, keyPath)
}

// writeSelfSigned signs template with a fresh key. The key is written only when keyPath is set.
func writeSelfSigned(tb testing.TB, template *x509.Certificate, certPath, keyPath string) {
	tb.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template.NotBefore = time.Now().Add(-time.Hour)
	template.NotAfter = time.Now().Add(time.Hour)

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		tb.Fatalf("failed to create certificate %s: %v", template.Subject.CommonName, err)
	}

	writePEM(tb, certPath, "CERTIFICATE", der)
	if keyPath != "" {
		writePEM(tb, keyPath, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
	}
}

func writePEM(tb testing.TB, path, blockType string, der []byte) {
	tb.Helper()

	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
}
