package model

import (
	"github.com/google/uuid"
)

// newID assigns a fresh UUID when the primary key is still zero. Called from
// every BeforeCreate hook so ids are generated client-side on any dialect.
func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
