package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"

	"github.com/sigstore/sigstore/pkg/cryptoutils"

	"github.com/wippyai/c2pa-bridge/errors"
)

// KeyCallback is a Callback backed by a local key. It stands in for the
// foreign signer in tools and tests; the Signer itself only sees the
// signatures it produces.
type KeyCallback struct {
	key crypto.Signer
	alg Algorithm
}

// NewKeyCallback checks that key can produce alg signatures.
func NewKeyCallback(key crypto.Signer, alg Algorithm) (*KeyCallback, error) {
	ok := false
	switch k := key.Public().(type) {
	case *ecdsa.PublicKey:
		ok = alg.IsECDSA() && curveFor(alg) == k.Curve
	case *rsa.PublicKey:
		ok = alg.IsPSS()
	case ed25519.PublicKey:
		ok = alg == Ed25519
	}
	if !ok {
		return nil, errors.New(errors.PhaseSigner, errors.KindConfiguration).
			Detail("key type %T cannot sign %s", key.Public(), alg).
			Build()
	}
	return &KeyCallback{key: key, alg: alg}, nil
}

// LoadKeyCallback parses an unencrypted PEM private key.
func LoadKeyCallback(keyPEM []byte, alg Algorithm) (*KeyCallback, error) {
	priv, err := cryptoutils.UnmarshalPEMToPrivateKey(keyPEM, cryptoutils.SkipPassword)
	if err != nil {
		return nil, errors.Configuration(errors.PhaseSigner, "malformed private key PEM", err)
	}
	key, ok := priv.(crypto.Signer)
	if !ok {
		return nil, errors.Configuration(errors.PhaseSigner, "private key cannot sign", nil)
	}
	return NewKeyCallback(key, alg)
}

// Sign implements Callback.
func (k *KeyCallback) Sign(data, sig []byte) int64 {
	out, err := k.sign(data)
	if err != nil || len(out) > len(sig) {
		return -1
	}
	return int64(copy(sig, out))
}

func (k *KeyCallback) sign(data []byte) ([]byte, error) {
	h := k.alg.Hash()
	if h == 0 {
		return k.key.Sign(rand.Reader, data, crypto.Hash(0))
	}

	hasher := h.New()
	hasher.Write(data)
	digest := hasher.Sum(nil)

	if k.alg.IsPSS() {
		return k.key.Sign(rand.Reader, digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
			Hash:       h,
		})
	}
	return k.key.Sign(rand.Reader, digest, h)
}

func curveFor(alg Algorithm) elliptic.Curve {
	switch alg {
	case ES256:
		return elliptic.P256()
	case ES384:
		return elliptic.P384()
	case ES512:
		return elliptic.P521()
	default:
		return nil
	}
}
