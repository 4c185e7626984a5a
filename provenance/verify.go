package provenance

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/wippyai/c2pa-bridge/signer"
)

func verifySignature(alg signer.Algorithm, cert *x509.Certificate, data, sig []byte) error {
	h := alg.Hash()
	var digest []byte
	if h != 0 {
		hasher := h.New()
		hasher.Write(data)
		digest = hasher.Sum(nil)
	}

	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		if !alg.IsECDSA() {
			return fmt.Errorf("ecdsa key cannot verify %s", alg)
		}
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return fmt.Errorf("ecdsa signature mismatch")
		}
	case *rsa.PublicKey:
		if !alg.IsPSS() {
			return fmt.Errorf("rsa key cannot verify %s", alg)
		}
		if err := rsa.VerifyPSS(pub, h, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: h}); err != nil {
			return err
		}
	case ed25519.PublicKey:
		if alg != signer.Ed25519 {
			return fmt.Errorf("ed25519 key cannot verify %s", alg)
		}
		if !ed25519.Verify(pub, data, sig) {
			return fmt.Errorf("ed25519 signature mismatch")
		}
	default:
		return fmt.Errorf("unsupported public key type %T", pub)
	}
	return nil
}
