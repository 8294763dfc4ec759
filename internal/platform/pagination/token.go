package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor marks the last document of a served page. The sort field is baked
// into the token so a cursor minted under one ordering cannot silently resume
// a query with another.
type Cursor struct {
	Field string `json:"field"`
	Value string `json:"value"`
	DocID string `json:"docId"`
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return c.Field == "" && c.Value == "" && c.DocID == ""
}

// EncodeToken serialises the cursor into an opaque page token.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.IsZero() {
		return "", nil
	}
	if cursor.Field == "" || cursor.DocID == "" {
		return "", fmt.Errorf("%w: cursor missing sort field or document id", ErrInvalidPageToken)
	}
	payload, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeToken parses a page token previously produced by EncodeToken. An
// empty token yields a zero cursor, meaning the first page.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.Field == "" || cursor.DocID == "" {
		return Cursor{}, fmt.Errorf("%w: cursor missing sort field or document id", ErrInvalidPageToken)
	}
	return cursor, nil
}
