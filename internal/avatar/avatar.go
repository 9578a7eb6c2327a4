package avatar

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxImageSize bounds the bytes read from an uploaded avatar.
const MaxImageSize = 5 << 20

// ErrTooLarge is returned for images above MaxImageSize.
var ErrTooLarge = errors.New("avatar too large")

// ObjectStore persists image bytes under a key.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.ReadSeeker) (version string, err error)
}

// Service derives avatar keys, uploads images and builds their public URLs.
type Service struct {
	store   ObjectStore
	baseURL string
	folder  string
}

// NewService creates a Service. baseURL is the public address under which stored objects are
// served, folder the key prefix for all avatars.
func NewService(store ObjectStore, baseURL, folder string) *Service {
	return &Service{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		folder:  strings.Trim(folder, "/"),
	}
}

// PublicID returns the storage key of the avatar of email. The same email always yields the
// same key, so a new upload replaces the previous image.
func (s *Service) PublicID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return s.folder + "/" + hex.EncodeToString(sum[:])[:12]
}

// Upload stores the image of the user with the given email and returns the URL of its 250x250
// cropped rendition.
func (s *Service) Upload(ctx context.Context, email string, file io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("reading avatar: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxImageSize)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	publicID := s.PublicID(email)
	version, err := s.store.Put(ctx, publicID, contentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("uploading avatar %s: %w", publicID, err)
	}
	return s.URL(publicID, version), nil
}

// URL builds the address of the cropped rendition of a stored avatar.
func (s *Service) URL(publicID, version string) string {
	return fmt.Sprintf("%s/c_fill,h_250,w_250/v%s/%s", s.baseURL, version, publicID)
}
