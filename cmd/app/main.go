package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"ovoz/cmd/fx/account_fx"
	"ovoz/cmd/fx/catalog_fx"
	"ovoz/cmd/fx/db_fx"
	"ovoz/cmd/fx/logger_fx"
	"ovoz/cmd/fx/merchant_fx"
	"ovoz/internal/api/controllers"
	"ovoz/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	app := fx.New(
		logger_fx.Module,
		db_fx.Module,
		account_fx.Module,
		catalog_fx.Module,
		merchant_fx.Module,

		fx.Invoke(StartServer),
		fx.Provide(ProvideRouter),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Println("Starting HTTP server at ${PORT}")
				if err := engine.Run(":" + os.Getenv("PORT")); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}

func ProvideRouter(
	merchantController *controllers.MerchantController,
	accountController *controllers.AccountController,
	catalogController *controllers.CatalogController) *gin.Engine {

	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, merchantController, accountController, catalogController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	merchantController *controllers.MerchantController,
	accountController *controllers.AccountController,
	catalogController *controllers.CatalogController) {

	// The provider calls this one route for all six methods.
	r.POST("/merchant/paycom", merchantController.Handle)

	accountsGroup := r.Group("/accounts")
	accountsGroup.POST("/register", accountController.Register)
	accountsGroup.POST("/login", accountController.Login)
	accountsGroup.GET("/me", middleware.JWTAuthMiddleware(), accountController.Me)

	catalogGroup := r.Group("/catalog")
	catalogGroup.GET("/plans", catalogController.ListPlans)
	catalogGroup.GET("/packages", catalogController.ListPackages)
}
