package ui

import (
	"fmt"
	"io"

	"potluck/models"
	"potluck/services"
)

// PrintRoster writes the two category lists and the total as a panel.
func PrintRoster(w io.Writer, entries []models.Dish, showIDs bool) {
	view := services.BuildView(entries)

	var lines []string
	lines = append(lines, titleStyle.Render("Potluck"))
	lines = append(lines, "")
	lines = append(lines, categoryLines(models.CategorySavory, view.Savory, showIDs)...)
	lines = append(lines, "")
	lines = append(lines, categoryLines(models.CategorySweet, view.Sweet, showIDs)...)
	if view.Total > 0 {
		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("%s %d", accentStyle.Render("Total dishes:"), view.Total))
	}
	fmt.Fprintln(w, panel(lines))
}

func categoryLines(cat models.Category, dishes []models.Dish, showIDs bool) []string {
	style := savoryStyle
	if cat == models.CategorySweet {
		style = sweetStyle
	}
	lines := []string{fmt.Sprintf("%s (%d)", style.Render(cat.Label()), len(dishes))}
	if len(dishes) == 0 {
		return append(lines, mutedStyle.Render(emptyText(cat)))
	}
	for _, d := range dishes {
		line := dishLine(d)
		if showIDs {
			line += "  " + mutedStyle.Render(d.ID)
		}
		lines = append(lines, line)
	}
	return lines
}

func dishLine(d models.Dish) string {
	return fmt.Sprintf("%s %s", d.DishName, mutedStyle.Render("by "+d.Name))
}

func emptyText(cat models.Category) string {
	if cat == models.CategorySweet {
		return "No sweet dishes yet"
	}
	return "No savory dishes yet"
}
