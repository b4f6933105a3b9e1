package graph

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one acquisition run. The ID travels with every
// snapshot so downstream consumers can tell two runs of the same node
// apart.
type Session struct {
	ID        uuid.UUID
	Name      string
	StartedAt time.Time
}

// NewSession starts a session now with a fresh random identity.
func NewSession(name string) Session {
	return Session{
		ID:        uuid.New(),
		Name:      name,
		StartedAt: time.Now().UTC(),
	}
}
