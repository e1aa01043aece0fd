package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWK_KeyMaterial(t *testing.T) {
	assert := require.New(t)

	t.Run("RSA", func(t *testing.T) {
		privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
		assert.NoError(err)
		publicKey := privateKey.Public().(*rsa.PublicKey)

		key := JWK{
			KID: "rsa-kid",
			KTY: KeyTypeRSA,
			ALG: "RS256",
			USE: "sig",
			N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
		}

		material, err := key.KeyMaterial()
		assert.NoError(err)
		got, ok := material.(*rsa.PublicKey)
		assert.True(ok)
		assert.True(publicKey.Equal(got))
	})

	t.Run("EC", func(t *testing.T) {
		privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		assert.NoError(err)

		xBytes := make([]byte, 32)
		yBytes := make([]byte, 32)
		privateKey.X.FillBytes(xBytes)
		privateKey.Y.FillBytes(yBytes)

		key := JWK{
			KID: "ec-kid",
			KTY: KeyTypeEC,
			CRV: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(xBytes),
			Y:   base64.RawURLEncoding.EncodeToString(yBytes),
		}

		material, err := key.KeyMaterial()
		assert.NoError(err)
		got, ok := material.(*ecdsa.PublicKey)
		assert.True(ok)
		assert.True(privateKey.PublicKey.Equal(got))
	})

	t.Run("OKP", func(t *testing.T) {
		publicKey, _, err := ed25519.GenerateKey(rand.Reader)
		assert.NoError(err)

		key := JWK{
			KID: "okp-kid",
			KTY: KeyTypeOKP,
			CRV: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(publicKey),
		}

		material, err := key.KeyMaterial()
		assert.NoError(err)
		got, ok := material.(ed25519.PublicKey)
		assert.True(ok)
		assert.True(publicKey.Equal(got))
	})

	t.Run("unsupported key type", func(t *testing.T) {
		key := JWK{KID: "weird", KTY: "PQC"}

		_, err := key.KeyMaterial()
		assert.Error(err)
		assert.Contains(err.Error(), "unsupported key type")
	})

	t.Run("broken material", func(t *testing.T) {
		key := JWK{KID: "broken", KTY: KeyTypeRSA, N: "!!!", E: "AQAB"}

		_, err := key.KeyMaterial()
		assert.Error(err)
	})
}

func TestJWK_CanVerify(t *testing.T) {
	tests := []struct {
		name string
		key  JWK
		want bool
	}{
		{name: "no hints", key: JWK{}, want: true},
		{name: "sig use", key: JWK{USE: "sig"}, want: true},
		{name: "enc use", key: JWK{USE: "enc"}, want: false},
		{name: "verify op", key: JWK{KeyOps: []string{"encrypt", "verify"}}, want: true},
		{name: "no verify op", key: JWK{KeyOps: []string{"encrypt"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.key.CanVerify())
		})
	}
}

func TestKeyType_Supported(t *testing.T) {
	assert := require.New(t)

	for _, kty := range []KeyType{KeyTypeRSA, KeyTypeEC, KeyTypeOKP, KeyTypeOctet} {
		assert.True(kty.Supported(), string(kty))
	}
	assert.False(KeyType("rsa").Supported())
	assert.False(KeyType("").Supported())
}
