package jwk

import (
	"encoding/json"
	"testing"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
	"github.com/stretchr/testify/require"
)

const rsaDocument = `{"keys":[{
	"kid":"abc",
	"kty":"RSA",
	"alg":"RS256",
	"use":"sig",
	"n":"0vx7agoebGcQSuuPiLJXZptN9nndrQmbXEps2aiAFbWhM78LhWx4cbbfAAtVT86zwu1RK7aPFFxuhDR1L6tSoc_BJECPebWKRXjBZCiFV4n3oknjhMstn64tZ_2W-5JsGY4Hc5n9yBXArwl93lqt7_RN5w6Cf0h4QyQ5v-65YGjQR0_FDW2QvzqY368QQMicAtaSqzs8KJZgnYb9c7d0zgdAZHzu6qMQvRL5hajrn1n91CbOpbISD08qNLyrdkt-bFTWhAI4vMQFh6WeZu0fM4lFd2NcRwr3XPksINHaQ-G_xBniIqbw0Ls1jF44-csFCur-kEgU8awapJzKnqDKgw",
	"e":"AQAB",
	"x5c":["MIIC+DCCAeCgAwIBAgIJBIGjYW6hFpn2MA0GCSqGSIb3DQEBBQUAMCMxITAfBgNVBAMTGGN1c3RvbWVyLWRlbW9zLmF1dGgwLmNvbTAeFw0xNjExMjIyMjIyMDVaFw0zMDA4MDEyMjIyMDVaMCMxITAfBgNVBAMTGGN1c3RvbWVyLWRlbW9zLmF1dGgwLmNvbTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBAMnjZc5bm_eGIHq09N9HKHahM7Y31P0ul-A2wwP4lSpIwFrWHzxw88_7Dwk9QMc-orGXX95R6av4GF-Es_nG3uK45ooMGCBHTcLj8r3sHvw"],
	"x5t":"NjVBRjY5MDlCMUIwNzU4RTA2QzZFMDQ4QzQ2MDAyQjVDNjk1RTM2Qg"
}]}`

func TestParse(t *testing.T) {
	assert := require.New(t)

	t.Run("single RSA key", func(t *testing.T) {
		set, err := Parse([]byte(rsaDocument))
		assert.NoError(err)
		assert.Equal(1, set.Len())
		assert.Empty(set.Skipped())

		key, ok := set.Lookup("abc")
		assert.True(ok)
		assert.Equal(KeyTypeRSA, key.KTY)
		assert.Equal("RS256", key.ALG)
		assert.Equal("sig", key.USE)
		assert.Equal("AQAB", key.E)
		assert.Len(key.X5C, 1)

		_, ok = set.Lookup("unknown")
		assert.False(ok)
	})

	t.Run("empty key set", func(t *testing.T) {
		set, err := Parse([]byte(`{"keys":[]}`))
		assert.NoError(err)
		assert.Equal(0, set.Len())
		assert.Empty(set.Keys())
	})

	t.Run("well formed and malformed entries", func(t *testing.T) {
		doc := `{"keys":[
			{"kid":"a","kty":"RSA","n":"AQAB","e":"AQAB"},
			{"kty":"RSA","n":"AQAB","e":"AQAB"},
			{"kid":"","kty":"EC"},
			{"kid":"b","kty":"EC","crv":"P-256","x":"AQ","y":"AQ"},
			{"kid":"c"},
			"not an object",
			{"kid":42,"kty":"RSA"},
			{"kid":"d","kty":"oct","k":"c2VjcmV0"},
			{"kid":"e","kty":"RSA","n":123},
			null
		]}`

		set, err := Parse([]byte(doc))
		assert.NoError(err)
		assert.Equal(3, set.Len())

		skipped := set.Skipped()
		assert.Len(skipped, 7)
		indexes := make([]int, 0, len(skipped))
		for _, s := range skipped {
			assert.Error(s.Err)
			indexes = append(indexes, s.Index)
		}
		assert.Equal([]int{1, 2, 4, 5, 6, 8, 9}, indexes)
		assert.ErrorIs(skipped[0].Err, ErrMissingField)

		for _, kid := range []string{"a", "b", "d"} {
			_, ok := set.Lookup(kid)
			assert.True(ok, kid)
		}
	})

	t.Run("unsupported key type is kept", func(t *testing.T) {
		set, err := Parse([]byte(`{"keys":[{"kid":"pq","kty":"ML-DSA","pub":"AAAA"}]}`))
		assert.NoError(err)

		key, ok := set.Lookup("pq")
		assert.True(ok)
		assert.False(key.KTY.Supported())
		assert.Contains(key.Extra, "pub")
	})

	t.Run("duplicate kid, last one wins", func(t *testing.T) {
		doc := `{"keys":[
			{"kid":"abc","kty":"RSA","n":"first","e":"AQAB"},
			{"kid":"other","kty":"RSA","n":"other","e":"AQAB"},
			{"kid":"abc","kty":"RSA","n":"second","e":"AQAB"}
		]}`

		set, err := Parse([]byte(doc))
		assert.NoError(err)
		assert.Equal(3, set.Len())

		key, ok := set.Lookup("abc")
		assert.True(ok)
		assert.Equal("second", key.N)

		keys := set.Keys()
		assert.Equal("first", keys[0].N)
		assert.Equal("second", keys[2].N)
	})

	t.Run("extra top level members are ignored", func(t *testing.T) {
		set, err := Parse([]byte(`{"issuer":"x","keys":[{"kid":"a","kty":"oct","k":"AA"}]}`))
		assert.NoError(err)
		assert.Equal(1, set.Len())
	})
}

func TestParse_MalformedDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty input", doc: ``},
		{name: "truncated", doc: `{"keys":[`},
		{name: "not json", doc: `<html>oops</html>`},
		{name: "top level array", doc: `[{"kid":"a","kty":"RSA"}]`},
		{name: "top level null", doc: `null`},
		{name: "missing keys", doc: `{"key":[]}`},
		{name: "keys is an object", doc: `{"keys":{"kid":"a","kty":"RSA"}}`},
		{name: "keys is null", doc: `{"keys":null}`},
		{name: "keys is a string", doc: `{"keys":"[]"}`},
		{name: "broken inner entry", doc: `{"keys":[{"kid":"a","kty":"RSA",}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := require.New(t)

			set, err := Parse([]byte(tt.doc))
			assert.Nil(set)
			assert.ErrorIs(err, jerrors.ErrMalformedDocument)
		})
	}
}

func TestJWK_RoundTrip(t *testing.T) {
	assert := require.New(t)

	doc := `{"keys":[
		{"kid":"rsa","kty":"RSA","alg":"RS256","use":"sig","n":"sXchDaQebHnPiGvyDOAT4saGEUetSyo9MKLOoWFsueri23bOdgWp4Dy1WlUzewbgBHod5pcM9H95GQRV3JDXboIRROSBigeC5yjU1hGzHHyXss8UDprecbAYxknTcQkhslANGRUZmdTOQ5qTRsLAt6BTYuyvVRdhS8exSZEy_c4gs_7svlJJQ4H9_NxsiIoLwAEk7-Q3UXERGYw_75IDrGA84-lA_-Ct4eTlXHBIY2EaV7t7LjJaynVJCpkv4LKjTTAumiGUIuQhrNhZLuF_RJLqHpM2kgWFLU7-VTdL1VbC2tejvcI2BlMkEpk1BzBZI0KQB0GaDWFLN-aEAw3vRw","e":"AQAB","x5t#S256":"abc_DEF-123"},
		{"kid":"ec","kty":"EC","crv":"P-256","x":"MKBCTNIcKUSDii11ySs3526iDZ8AiTo7Tu6KPAqv7D4","y":"4Etl6SRW2YiLUrN5vfvVHuhp7x8PxltmWWlbbM4IFyM","use":"sig"},
		{"kid":"okp","kty":"OKP","crv":"Ed25519","x":"11qYAYKxCrfVS_7TyWQHOg7hcvPapiMlrwIaaPcHURo","key_ops":["verify"]},
		{"kid":"future","kty":"XYZ","custom":{"nested":[1,2,3]},"alg":"X1"},
		{"kid":"blank","kty":"RSA","n":"AQ","e":"AQAB","alg":"","key_ops":[],"x5c":null}
	]}`

	set, err := Parse([]byte(doc))
	assert.NoError(err)
	assert.Equal(5, set.Len())

	blank, ok := set.Lookup("blank")
	assert.True(ok)
	assert.Empty(blank.ALG)
	assert.Empty(blank.KeyOps)

	var original struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	assert.NoError(json.Unmarshal([]byte(doc), &original))

	for i, key := range set.Keys() {
		encoded, err := json.Marshal(key)
		assert.NoError(err)

		var got map[string]interface{}
		assert.NoError(json.Unmarshal(encoded, &got))
		assert.Equal(original.Keys[i], got, key.KID)

		var again JWK
		assert.NoError(json.Unmarshal(encoded, &again))
		assert.Equal(key, again)
	}
}

func TestKeySet_MarshalJSON(t *testing.T) {
	assert := require.New(t)

	set := NewKeySet(
		JWK{KID: "a", KTY: KeyTypeOctet, K: "AA"},
		JWK{KID: "b", KTY: KeyTypeOctet, K: "AQ"},
	)

	data, err := json.Marshal(set)
	assert.NoError(err)
	assert.JSONEq(`{"keys":[{"kid":"a","kty":"oct","k":"AA"},{"kid":"b","kty":"oct","k":"AQ"}]}`, string(data))

	parsed, err := Parse(data)
	assert.NoError(err)
	assert.Equal(set.Keys(), parsed.Keys())

	empty, err := json.Marshal(NewKeySet())
	assert.NoError(err)
	assert.JSONEq(`{"keys":[]}`, string(empty))
}
