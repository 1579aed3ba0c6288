package utils

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const timeCursorSeparator = "_"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// EncodeCursor creates a base64 encoded cursor string from time and UUID.
func EncodeCursor(t time.Time, id uuid.UUID) string {
	if id == uuid.Nil || t.IsZero() {
		return ""
	}
	cursorData := strconv.FormatInt(t.UnixNano(), 10) + timeCursorSeparator + id.String()
	return base64.URLEncoding.EncodeToString([]byte(cursorData))
}

// DecodeCursor parses a cursor produced by EncodeCursor. An empty cursor
// decodes to zero values and no error: it means "start from the beginning".
func DecodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, nil
	}

	decodedBytes, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor base64 format: %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), timeCursorSeparator, 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor separator format, expected 2 parts, got %d", len(parts))
	}

	timestampNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor timestamp format: %w", err)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor uuid format: %w", err)
	}

	return time.Unix(0, timestampNano).UTC(), id, nil
}

// SanitizeLimit возвращает limit, если он в [1, MaxPageLimit], иначе DefaultPageLimit.
func SanitizeLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return DefaultPageLimit
	}
	return limit
}
