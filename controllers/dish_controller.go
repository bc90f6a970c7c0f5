package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"potluck/models"
	"potluck/services"
	"potluck/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DishController struct {
	Store  services.DishStore
	Roster *services.Roster
	Log    *zap.Logger
}

func NewDishController(store services.DishStore, roster *services.Roster, log *zap.Logger) *DishController {
	if log == nil {
		log = zap.NewNop()
	}
	return &DishController{Store: store, Roster: roster, Log: log}
}

type createDishReq struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DishName  string     `json:"dish_name"`
	Type      string     `json:"type"`
	CreatedAt *time.Time `json:"created_at"`
}

// GET /dishes
func (dc *DishController) ListDishes(c *gin.Context) {
	dishes, err := dc.Store.Select(c.Request.Context())
	if err != nil {
		dc.Log.Error("list dishes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load dishes"})
		return
	}
	c.JSON(http.StatusOK, dishes)
}

// POST /dishes
// The table does not check names; that happens where the form is submitted.
func (dc *DishController) CreateDish(c *gin.Context) {
	var req createDishReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	d := models.Dish{
		ID:       strings.TrimSpace(req.ID),
		Name:     req.Name,
		DishName: req.DishName,
		Type:     models.DefaultCategory,
	}
	if d.ID == "" {
		d.ID = utils.NewDishID()
	} else if !utils.ValidDishID(d.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}
	if req.Type != "" {
		cat, ok := models.ParseCategory(req.Type)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be salgado or doce"})
			return
		}
		d.Type = cat
	}
	if req.CreatedAt != nil {
		d.CreatedAt = *req.CreatedAt
	} else {
		d.CreatedAt = time.Now()
	}

	if err := dc.Store.Insert(c.Request.Context(), d); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "dish id already exists"})
			return
		}
		dc.Log.Error("create dish", zap.String("dish_id", d.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add dish"})
		return
	}
	c.JSON(http.StatusCreated, d)
}

// DELETE /dishes/:id
func (dc *DishController) DeleteDish(c *gin.Context) {
	id := c.Param("id")
	if err := dc.Store.Delete(c.Request.Context(), id); err != nil {
		dc.Log.Error("delete dish", zap.String("dish_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove dish"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /roster
// Served from the server's own roster, which follows the change feed.
func (dc *DishController) GetRoster(c *gin.Context) {
	view := dc.Roster.View()
	c.JSON(http.StatusOK, gin.H{
		"savory": view.Savory,
		"sweet":  view.Sweet,
		"total":  view.Total,
		"state":  dc.Roster.State().String(),
	})
}
