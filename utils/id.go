package utils

import "github.com/google/uuid"

// NewDishID returns a random v4 UUID.
func NewDishID() string {
	return uuid.NewString()
}

// ValidDishID reports whether s looks like an id NewDishID would produce.
func ValidDishID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
