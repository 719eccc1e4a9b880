package shared

import "time"

// IDGenerator issues unique, time-ordered 64-bit identifiers.
// A smaller ID always belongs to an entity created earlier on the same node.
type IDGenerator interface {
	NextID() int64
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates a new base entity with the given ID
func NewBaseEntity(id int64) BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
