package models

import (
	"strings"
	"time"
)

// Category is the kind of dish a guest brings. Stored values match the
// `type` column of the dishes table.
type Category string

const (
	CategorySavory Category = "salgado"
	CategorySweet  Category = "doce"
)

// DefaultCategory is what a reset form starts with.
const DefaultCategory = CategorySavory

func (c Category) Valid() bool {
	return c == CategorySavory || c == CategorySweet
}

// Label is the english display name.
func (c Category) Label() string {
	switch c {
	case CategorySavory:
		return "Savory"
	case CategorySweet:
		return "Sweet"
	}
	return string(c)
}

// ParseCategory accepts stored values and their english names, any case.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "salgado", "savory":
		return CategorySavory, true
	case "doce", "sweet":
		return CategorySweet, true
	}
	return "", false
}

type Dish struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"` // participant
	DishName  string    `gorm:"column:dish_name;size:120;not null" json:"dish_name"`
	Type      Category  `gorm:"size:16;index" json:"type"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (Dish) TableName() string { return DishesTable }

const DishesTable = "dishes"
