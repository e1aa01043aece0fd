package jwk

import (
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// KeyMaterial converts the key into the Go value a signature verifier
// consumes: *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey or []byte for
// octet keys.
func (k JWK) KeyMaterial() (interface{}, error) {
	if !k.KTY.Supported() {
		return nil, fmt.Errorf("unsupported key type %q for kid %s", k.KTY, k.KID)
	}

	raw, err := json.Marshal(k)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JWK %s: %w", k.KID, err)
	}

	var parsed jose.JSONWebKey
	if err := parsed.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("failed to parse JWK %s: %w", k.KID, err)
	}

	return parsed.Key, nil
}

// CanVerify reports whether the key may be used to check signatures
// according to its "use" and "key_ops" hints.
func (k JWK) CanVerify() bool {
	if k.USE != "" && k.USE != "sig" {
		return false
	}
	if len(k.KeyOps) == 0 {
		return true
	}
	for _, op := range k.KeyOps {
		if op == "verify" {
			return true
		}
	}
	return false
}
