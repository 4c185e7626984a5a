// Package testutil generates fixtures for tests: baseline JPEG images and
// throwaway signing credentials. Nothing here is written to disk.
package testutil

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"golang.org/x/crypto/ocsp"
)

// JPEG returns a small baseline JPEG with a gradient so the encoder emits
// real scan data.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// Credentials is a generated signing identity.
type Credentials struct {
	Key     crypto.Signer
	Cert    *x509.Certificate
	CertPEM []byte
	KeyPEM  []byte
}

// NewCredentials generates a self-signed leaf for alg, one of es256, es384,
// es512, ps256, ps384, ps512 or ed25519.
func NewCredentials(t testing.TB, alg string) *Credentials {
	t.Helper()

	key := newKey(t, strings.ToLower(alg))

	serial, err := cryptoutils.GenerateSerialNumber()
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "c2pa-bridge test signer", Organization: []string{"c2pa-bridge"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection, x509.ExtKeyUsageOCSPSigning},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	certPEM, err := cryptoutils.MarshalCertificateToPEM(cert)
	if err != nil {
		t.Fatalf("marshal certificate: %v", err)
	}
	keyPEM, err := cryptoutils.MarshalPrivateKeyToPEM(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	return &Credentials{Key: key, Cert: cert, CertPEM: certPEM, KeyPEM: keyPEM}
}

// OCSP returns a good-status OCSP response for the credentials' own
// certificate, signed by itself.
func (c *Credentials) OCSP(t testing.TB) []byte {
	t.Helper()

	resp, err := ocsp.CreateResponse(c.Cert, c.Cert, ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: c.Cert.SerialNumber,
		ThisUpdate:   time.Now().Add(-time.Minute),
		NextUpdate:   time.Now().Add(time.Hour),
	}, c.Key)
	if err != nil {
		t.Fatalf("create ocsp response: %v", err)
	}
	return resp
}

func newKey(t testing.TB, alg string) crypto.Signer {
	t.Helper()

	var (
		key crypto.Signer
		err error
	)
	switch alg {
	case "es256":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "es384":
		key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "es512":
		key, err = ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	case "ps256", "ps384", "ps512":
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	case "ed25519":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		t.Fatalf("no key type for %q", alg)
	}
	if err != nil {
		t.Fatalf("generate %s key: %v", alg, err)
	}
	return key
}
