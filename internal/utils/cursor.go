package utils

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// ResumeCursor is the keyset position of the last resume on a page.
type ResumeCursor struct {
	UpdatedAt time.Time `json:"updatedAt"`
	ID        string    `json:"id"`
}

func EncodeResumeCursor(updatedAt time.Time, id string) (string, error) {
	b, err := json.Marshal(ResumeCursor{UpdatedAt: updatedAt.UTC(), ID: id})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeResumeCursor(cursor string) (ResumeCursor, error) {
	if cursor == "" {
		return ResumeCursor{}, ErrInvalidCursor
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return ResumeCursor{}, ErrInvalidCursor
	}

	var c ResumeCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return ResumeCursor{}, ErrInvalidCursor
	}
	if c.ID == "" || c.UpdatedAt.IsZero() {
		return ResumeCursor{}, ErrInvalidCursor
	}
	return c, nil
}
