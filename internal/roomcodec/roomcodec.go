// Package roomcodec turns room identifiers into tokens that fit in one URL
// path segment. Tokens use the URL-safe base64 alphabet without padding, so
// they never contain '/', '%', '=' or anything else that needs escaping.
package roomcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"
)

var ErrInvalidToken = errors.New("invalid room token")

var encoding = base64.RawURLEncoding

func Encode(roomID string) string {
	return encoding.EncodeToString([]byte(roomID))
}

func Decode(token string) (string, error) {
	b, err := encoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: not utf-8", ErrInvalidToken)
	}
	return string(b), nil
}
