// Package id defines the identifier generation contracts used by stores
// and services.
package id

import "github.com/google/uuid"

// Generator mints new unique identifiers as strings.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator mints typed UUIDs for records whose stores key on
// uuid.UUID.
type UUIDGenerator interface {
	NewUUID() (uuid.UUID, error)
}
