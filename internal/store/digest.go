package store

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"fleetd/internal/ferrors"
)

// verifyDigest checks data against an "<algorithm>:<hex>" expected digest
// string, e.g. "blake2b-256:deadbeef...". An empty expected digest skips
// verification (recipes may declare artifacts without one during
// development).
func verifyDigest(component string, data []byte, expected string) error {
	if expected == "" {
		return nil
	}
	algo, hexDigest, ok := strings.Cut(expected, ":")
	if !ok {
		return ferrors.New(ferrors.KindDigestMismatch, component, "malformed digest "+expected)
	}
	switch algo {
	case "blake2b-256":
		sum := blake2b.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != hexDigest {
			return ferrors.New(ferrors.KindDigestMismatch, component,
				fmt.Sprintf("expected %s, computed %s", hexDigest, got))
		}
		return nil
	default:
		return ferrors.New(ferrors.KindDigestMismatch, component, "unsupported digest algorithm "+algo)
	}
}
