// Package pagination turns keyset positions into opaque page tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageToken reports a token that was not produced by Encode for the same cursor type.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")

// Encode renders cursor as an unpadded base64url JSON token.
func Encode[C any](cursor C) (string, error) {
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses token into a cursor. Unknown fields are rejected so a token minted for one
// listing cannot be replayed against another. ok is false for a blank token.
func Decode[C any](token string) (cursor C, ok bool, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return cursor, false, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor, false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cursor); err != nil {
		return cursor, false, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, true, nil
}
