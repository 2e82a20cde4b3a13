package router

import (
	"time"

	"expensight/api"
	"expensight/config"
	_ "expensight/docs"
	"expensight/middleware"
	"expensight/store"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services are the collaborators the handlers depend on.
type Services struct {
	Store    *store.Store
	Analysis api.Analyzer
	Coach    api.Coach
}

// SetupRouter wires every route.
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()
	r.Use(CORSMiddleware())

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	loc := cfg.Analytics.Location()
	expenseHandler := api.NewExpenseHandler(svc.Store, svc.Analysis, loc)
	categoryHandler := api.NewCategoryHandler(svc.Store, svc.Analysis)
	budgetHandler := api.NewBudgetHandler(svc.Store, svc.Analysis)
	analyticsHandler := api.NewAnalyticsHandler(svc.Analysis)
	coachHandler := api.NewCoachHandler(svc.Coach, svc.Analysis)
	exportHandler := api.NewExportHandler(svc.Analysis)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth())
	{
		expenses := v1.Group("/expenses")
		{
			expenses.POST("", expenseHandler.Create)
			expenses.GET("", expenseHandler.List)
			expenses.DELETE("/:id", expenseHandler.Delete)
		}

		v1.GET("/categories", categoryHandler.List)
		v1.POST("/categories", categoryHandler.Create)

		v1.GET("/budgets", budgetHandler.Get)
		v1.PUT("/budgets", budgetHandler.Set)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/snapshot", analyticsHandler.Snapshot)
			analytics.GET("/signature", analyticsHandler.Signature)

			// each request costs an upstream model call
			analytics.POST("/coach", middleware.RateLimit(10, time.Hour), coachHandler.Request)
			analytics.GET("/coach", coachHandler.Status)
			analytics.POST("/coach/read", coachHandler.MarkRead)
			analytics.PUT("/coach/panel", coachHandler.Panel)
		}

		export := v1.Group("/export")
		{
			export.GET("/snapshot.csv", exportHandler.ExportCSV)
			export.GET("/snapshot.xlsx", exportHandler.ExportXLSX)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	return r
}

// CORSMiddleware CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
