package services

import "potluck/models"

// RosterView is the roster split for display. Build a new one for every
// roster version; it holds no state of its own.
type RosterView struct {
	Savory []models.Dish `json:"savory"`
	Sweet  []models.Dish `json:"sweet"`
	Total  int           `json:"total"`
}

// Partition filters entries by category, keeping input order. Entries with
// any other category land in neither bucket.
func Partition(entries []models.Dish) (savory, sweet []models.Dish) {
	savory = []models.Dish{}
	sweet = []models.Dish{}
	for _, d := range entries {
		switch d.Type {
		case models.CategorySavory:
			savory = append(savory, d)
		case models.CategorySweet:
			sweet = append(sweet, d)
		}
	}
	return savory, sweet
}

// TotalCount counts every entry, whatever its category.
func TotalCount(entries []models.Dish) int {
	return len(entries)
}

func BuildView(entries []models.Dish) RosterView {
	savory, sweet := Partition(entries)
	return RosterView{Savory: savory, Sweet: sweet, Total: TotalCount(entries)}
}
