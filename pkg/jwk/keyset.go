package jwk

import (
	"bytes"
	"encoding/json"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
)

// SkippedKey describes an entry of the "keys" array that could not be
// decoded into a JWK.
type SkippedKey struct {
	Index int
	Err   error
}

// KeySet is one parsed snapshot of a key set document. It is never modified
// after Parse returns it.
type KeySet struct {
	keys    []JWK
	byKID   map[string]int
	skipped []SkippedKey
}

// NewKeySet builds a snapshot from already decoded keys.
func NewKeySet(keys ...JWK) *KeySet {
	set := &KeySet{
		keys:  make([]JWK, 0, len(keys)),
		byKID: make(map[string]int, len(keys)),
	}
	for _, key := range keys {
		set.add(key)
	}
	return set
}

func (s *KeySet) add(key JWK) {
	s.keys = append(s.keys, key)
	// later entries overwrite earlier ones with the same kid
	s.byKID[key.KID] = len(s.keys) - 1
}

// Lookup returns the key with the given kid. When the document listed the
// kid more than once the last occurrence is returned.
func (s *KeySet) Lookup(kid string) (JWK, bool) {
	if s == nil {
		return JWK{}, false
	}
	i, ok := s.byKID[kid]
	if !ok {
		return JWK{}, false
	}
	return s.keys[i], true
}

// Keys returns every decoded key in document order, duplicates included.
func (s *KeySet) Keys() []JWK {
	if s == nil {
		return nil
	}
	out := make([]JWK, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of decoded keys.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Skipped returns the entries Parse dropped.
func (s *KeySet) Skipped() []SkippedKey {
	if s == nil {
		return nil
	}
	out := make([]SkippedKey, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// MarshalJSON encodes the snapshot as a key set document.
func (s *KeySet) MarshalJSON() ([]byte, error) {
	keys := s.Keys()
	if keys == nil {
		keys = []JWK{}
	}
	return json.Marshal(Document{Keys: keys})
}

// Parse decodes a key set document. The document itself must be a JSON
// object with a "keys" array, otherwise a MalformedDocument error is
// returned. Entries of the array that do not decode are skipped and reported
// through KeySet.Skipped.
func Parse(data []byte) (*KeySet, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil, jerrors.NewMalformedDocumentError("key set is not a JSON object", err)
	}
	if outer == nil {
		return nil, jerrors.NewMalformedDocumentError("key set is null", nil)
	}

	rawKeys, ok := outer["keys"]
	if !ok {
		return nil, jerrors.NewMalformedDocumentError(`key set has no "keys" member`, nil)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(rawKeys), []byte("[")) {
		return nil, jerrors.NewMalformedDocumentError(`"keys" member is not an array`, nil)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawKeys, &entries); err != nil {
		return nil, jerrors.NewMalformedDocumentError(`"keys" member is not an array`, err)
	}

	set := NewKeySet()
	for i, entry := range entries {
		var key JWK
		if err := json.Unmarshal(entry, &key); err != nil {
			set.skipped = append(set.skipped, SkippedKey{Index: i, Err: err})
			continue
		}
		set.add(key)
	}

	return set, nil
}
