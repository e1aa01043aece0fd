package jwk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// KeyType is the "kty" member of a JWK.
type KeyType string

const (
	KeyTypeRSA   KeyType = "RSA"
	KeyTypeEC    KeyType = "EC"
	KeyTypeOKP   KeyType = "OKP"
	KeyTypeOctet KeyType = "oct"
)

// Supported reports whether the key type is one this package knows the
// material fields of. Unsupported keys are still kept in a KeySet.
func (t KeyType) Supported() bool {
	switch t {
	case KeyTypeRSA, KeyTypeEC, KeyTypeOKP, KeyTypeOctet:
		return true
	}
	return false
}

// Document is the wire shape of a key set.
type Document struct {
	Keys []JWK `json:"keys"`
}

// JWK is one key entry of a key set. Material fields hold the base64url
// strings exactly as published. Extra keeps the members not modelled here,
// and known members published as empty or null, so that encoding a decoded
// key gives back the same members.
type JWK struct {
	KID     string   `json:"kid"`
	KTY     KeyType  `json:"kty"`
	ALG     string   `json:"alg,omitempty"`
	USE     string   `json:"use,omitempty"`
	KeyOps  []string `json:"key_ops,omitempty"`
	X5U     string   `json:"x5u,omitempty"`
	X5C     []string `json:"x5c,omitempty"`
	X5T     string   `json:"x5t,omitempty"`
	X5TS256 string   `json:"x5t#S256,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC and OKP
	CRV string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`

	// oct
	K string `json:"k,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ErrMissingField is returned when a required member is absent or empty.
var ErrMissingField = errors.New("missing required member")

// stringMembers maps JSON member names to the string fields they fill.
func (k *JWK) stringMembers() map[string]*string {
	return map[string]*string{
		"alg":      &k.ALG,
		"use":      &k.USE,
		"x5u":      &k.X5U,
		"x5t":      &k.X5T,
		"x5t#S256": &k.X5TS256,
		"n":        &k.N,
		"e":        &k.E,
		"crv":      &k.CRV,
		"x":        &k.X,
		"y":        &k.Y,
		"k":        &k.K,
	}
}

// UnmarshalJSON decodes a single key object. It fails when the input is not
// an object, when a known member has the wrong JSON type or when kid or kty
// is missing.
func (k *JWK) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("key is not a JSON object: %w", err)
	}
	if members == nil {
		return errors.New("key is null")
	}

	var out JWK
	var kty string
	required := map[string]*string{"kid": &out.KID, "kty": &kty}
	for name, dst := range required {
		raw, ok := members[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrMissingField, name)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		if *dst == "" {
			return fmt.Errorf("%w %q", ErrMissingField, name)
		}
		delete(members, name)
	}
	out.KTY = KeyType(kty)

	for name, dst := range out.stringMembers() {
		raw, ok := members[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		if *dst != "" {
			delete(members, name)
		}
	}

	lists := map[string]*[]string{"key_ops": &out.KeyOps, "x5c": &out.X5C}
	for name, dst := range lists {
		raw, ok := members[name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("member %q: %w", name, err)
		}
		if len(*dst) > 0 {
			delete(members, name)
		}
	}

	if len(members) > 0 {
		out.Extra = members
	}

	*k = out
	return nil
}

// MarshalJSON encodes the key with its Extra members merged back in.
func (k JWK) MarshalJSON() ([]byte, error) {
	// alias drops the methods so the standard encoder handles the tagged fields
	type alias JWK
	base, err := json.Marshal(alias(k))
	if err != nil {
		return nil, err
	}
	if len(k.Extra) == 0 {
		return base, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(base, &members); err != nil {
		return nil, err
	}
	for name, raw := range k.Extra {
		// a field set since decoding wins over its published empty form
		if _, known := members[name]; known {
			continue
		}
		members[name] = raw
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(members); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
