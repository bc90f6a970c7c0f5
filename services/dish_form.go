package services

import "potluck/models"

// DishForm is what a participant is typing before submitting.
type DishForm struct {
	Name     string
	DishName string
	Category models.Category
}

func NewDishForm() *DishForm {
	return &DishForm{Category: models.DefaultCategory}
}

// Reset clears both names and puts the category back to savory.
func (f *DishForm) Reset() {
	f.Name = ""
	f.DishName = ""
	f.Category = models.DefaultCategory
}
