package routes

import (
	"net/http"

	"potluck/controllers"
	"potluck/middlewares"
	"potluck/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Store  services.DishStore
	Roster *services.Roster
	Hub    *services.RealtimeHub
	Log    *zap.Logger
}

func SetupRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(d.Log))

	dc := controllers.NewDishController(d.Store, d.Roster, d.Log)
	rc := controllers.NewRealtimeController(d.Hub)

	dishes := r.Group("/dishes")
	{
		dishes.GET("", dc.ListDishes)
		dishes.POST("", dc.CreateDish)
		dishes.DELETE("/:id", dc.DeleteDish)
		dishes.GET("/ws", rc.DishesWS)
	}
	r.GET("/roster", dc.GetRoster)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
