package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	jerrors "github.com/Vandebron/jwks-client/pkg/errors"
	"github.com/Vandebron/jwks-client/pkg/jwk"
)

// StaticSource serves a key set held in memory.
type StaticSource struct {
	data []byte
}

// NewStaticSource returns a source that always yields a copy of data.
func NewStaticSource(data []byte) *StaticSource {
	return &StaticSource{data: append([]byte(nil), data...)}
}

// NewStaticKeySource encodes keys into a key set document.
func NewStaticKeySource(keys ...jwk.JWK) (*StaticSource, error) {
	if keys == nil {
		keys = []jwk.JWK{}
	}
	data, err := json.Marshal(jwk.Document{Keys: keys})
	if err != nil {
		return nil, jerrors.NewConfigurationError("failed to encode static keys", err)
	}
	return &StaticSource{data: data}, nil
}

// Fetch returns the held document.
func (s *StaticSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, jerrors.NewSourceUnavailableError("fetch cancelled", err)
	}
	return append([]byte(nil), s.data...), nil
}

// FileSource reads a key set document from disk on every fetch, so a file
// replaced on rotation is picked up by the next refresh.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, jerrors.NewConfigurationError("file source path is required", nil)
	}
	return &FileSource{path: path}, nil
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, jerrors.NewSourceUnavailableError("fetch cancelled", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, jerrors.NewSourceUnavailableError(fmt.Sprintf("failed to read %s", s.path), err)
	}
	return data, nil
}
