package models

import "github.com/google/uuid"

// ensureID assigns a new UUID when the primary key has not been set.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
