package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Vandebron/jwks-client/pkg/jwk"
)

// KeyResolver returns the key published under kid. *jwks.Client implements
// it.
type KeyResolver interface {
	Get(ctx context.Context, kid string) (jwk.JWK, error)
}

type TokenValidator struct {
	resolver KeyResolver
}

// New creates a new TokenValidator resolving keys through resolver.
func New(resolver KeyResolver) *TokenValidator {
	return &TokenValidator{
		resolver: resolver,
	}
}

// Keyfunc returns a jwt.Keyfunc that looks up the signing key named by the
// token's kid header.
func (tv *TokenValidator) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		// Extract alg and kid from the token header
		alg, ok := token.Header["alg"].(string)
		if !ok {
			return nil, errors.New("missing or invalid 'alg' in token header")
		}
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing or invalid 'kid' in token header")
		}

		// Ensure the algorithm matches expected method
		if token.Method.Alg() != alg {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}

		key, err := tv.resolver.Get(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve key for kid %s: %w", kid, err)
		}

		if key.ALG != "" && key.ALG != alg {
			return nil, fmt.Errorf("key %s is for %s, token is signed with %s", kid, key.ALG, alg)
		}
		if !key.CanVerify() {
			return nil, fmt.Errorf("key %s is not a signature verification key", kid)
		}

		material, err := key.KeyMaterial()
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWK: %w", err)
		}
		return material, nil
	}
}

// Validate parses and verifies the token and returns its claims flattened.
func (tv *TokenValidator) Validate(ctx context.Context, tokenString string) (map[string]string, error) {
	// Parse and validate
	token, err := jwt.Parse(tokenString, tv.Keyfunc(ctx))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	// Get Claims
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return FlattenMap(claims), nil
}

// FlattenMap flattens a nested map into a single-level map with dot-separated
// keys.
func FlattenMap(input map[string]interface{}) map[string]string {
	flat := make(map[string]string)
	flattenRecursive("", input, flat)
	return flat
}

// flattenRecursive is a helper function that recursively flattens the map.
func flattenRecursive(prefix string, input interface{}, out map[string]string) {
	switch val := input.(type) {
	case map[string]interface{}:
		for k, v := range val {
			fullKey := k
			if prefix != "" {
				fullKey = prefix + "." + k
			}
			flattenRecursive(fullKey, v, out)
		}
	case []interface{}:
		// Join list into comma-separated string
		var items []string
		for _, item := range val {
			items = append(items, fmt.Sprintf("%v", item))
		}
		out[prefix] = strings.Join(items, ",")
	default:
		out[prefix] = fmt.Sprintf("%v", val)
	}
}
