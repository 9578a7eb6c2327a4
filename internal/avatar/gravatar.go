package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
)

const gravatarBase = "https://www.gravatar.com/avatar/"

// GravatarURL returns the Gravatar image address for email.
func GravatarURL(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", fmt.Errorf("gravatar: empty email")
	}
	if _, err := mail.ParseAddress(normalized); err != nil {
		return "", fmt.Errorf("gravatar: %w", err)
	}
	sum := md5.Sum([]byte(normalized))
	return gravatarBase + hex.EncodeToString(sum[:]), nil
}
