package main

import (
	"strings"

	"github.com/gofrs/uuid"
)

var _ UIDHandler = (*IDsHandler)(nil) // ensure IDsHandler implements UIDHandler.

// UIDHandler is an interface for getting and checking uids.
type UIDHandler interface {
	Generate(prefix string) string
	IsValid(id string, prefix string) bool
}

// IDsHandler implements the UIDHandler interface with random v4 uuids.
type IDsHandler struct{}

// NewIDsHandler returns a ready to use IDsHandler.
func NewIDsHandler() *IDsHandler {
	return &IDsHandler{}
}

// Generate provides a random unique identifier. An empty prefix
// gives the canonical uuid form used for book instances. It panics
// when the system random source fails.
func (idh *IDsHandler) Generate(prefix string) string {
	id := uuid.Must(uuid.NewV4())
	if prefix == "" {
		return id.String()
	}
	return prefix + ":" + id.String()
}

// IsValid checks if a given string is a valid uuid after removal of custom prefix.
func (idh *IDsHandler) IsValid(id, prefix string) bool {
	if prefix != "" {
		id = strings.TrimPrefix(id, prefix+":")
	}
	return IsUUID(id)
}

// IsUUID reports whether s is a canonical uuid string.
func IsUUID(s string) bool {
	u, err := uuid.FromString(s)
	if err != nil || u == uuid.Nil {
		return false
	}
	return len(s) == 36
}

// NormalizeUUID returns the lower case canonical form of a uuid string.
func NormalizeUUID(s string) string {
	u, err := uuid.FromString(s)
	if err != nil {
		return s
	}
	return u.String()
}
