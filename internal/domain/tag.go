package domain

import "github.com/google/uuid"

type Tag struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Slug string    `json:"slug" db:"slug"`
	Name string    `json:"name" db:"name"`
}

type ActivityTag struct {
	ActivityID uuid.UUID `db:"activity_id"`
	TagID      uuid.UUID `db:"tag_id"`
}
