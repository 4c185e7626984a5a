package provenance

import (
	"bytes"

	"github.com/zeebo/blake3"
)

type domainKey [32]byte

// Domain keys are ASCII names zero-padded to 32 bytes. Changing one
// invalidates every manifest signed with it.
var (
	assetDomainKey = domainKey{
		'c', '2', 'p', 'a', '-', 'b', 'r', 'i', 'd', 'g', 'e', '.',
		'a', 's', 's', 'e', 't',
	}

	assertionDomainKey = domainKey{
		'c', '2', 'p', 'a', '-', 'b', 'r', 'i', 'd', 'g', 'e', '.',
		'a', 's', 's', 'e', 'r', 't', 'i', 'o', 'n',
	}

	resourceDomainKey = domainKey{
		'c', '2', 'p', 'a', '-', 'b', 'r', 'i', 'd', 'g', 'e', '.',
		'r', 'e', 's', 'o', 'u', 'r', 'c', 'e',
	}
)

func keyedHash(key domainKey, data []byte) []byte {
	// NewKeyed only fails for keys that are not 32 bytes
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("provenance: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}

func hashMatches(key domainKey, data, want []byte) bool {
	return bytes.Equal(keyedHash(key, data), want)
}
