package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"salgado": CategorySavory,
		"Savory":  CategorySavory,
		" SWEET ": CategorySweet,
		"doce":    CategorySweet,
	}
	for in, want := range cases {
		got, ok := ParseCategory(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseCategory("bebida")
	assert.False(t, ok)
	_, ok = ParseCategory("")
	assert.False(t, ok)
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategorySavory.Valid())
	assert.True(t, CategorySweet.Valid())
	assert.False(t, Category("savory").Valid(), "only stored values are valid")
	assert.Equal(t, CategorySavory, DefaultCategory)
	assert.Equal(t, "Sweet", CategorySweet.Label())
}

func TestDishJSONMatchesTableColumns(t *testing.T) {
	d := Dish{ID: "id-1", Name: "Ana", DishName: "Lasanha", Type: CategorySavory, CreatedAt: time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC)}
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Ana", m["name"])
	assert.Equal(t, "Lasanha", m["dish_name"])
	assert.Equal(t, "salgado", m["type"])
	assert.Contains(t, m, "created_at")
	assert.Equal(t, "dishes", d.TableName())
}
