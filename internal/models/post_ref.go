package models

import (
	"time"

	"gorm.io/datatypes"
)

// PostRef points a post at an entity owned by another module. Metadata is
// stored and returned verbatim.
type PostRef struct {
	ID        uint              `gorm:"primaryKey" json:"-"`
	PostID    uint              `gorm:"not null;uniqueIndex" json:"-"`
	Service   string            `gorm:"size:64;not null" json:"service"`
	EntityID  string            `gorm:"size:191;not null" json:"entityId"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"-"`
	UpdatedAt time.Time         `json:"-"`
}
