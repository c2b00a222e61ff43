package main

import (
	"context"
	"log"
	"os"

	"bandroom/database"
	"bandroom/dues"
	"bandroom/handlers"
	"bandroom/notify"

	tracer "github.com/dhawal-pandya/aeonis/packages/tracer-sdk/go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment as-is")
	}

	apiKey := os.Getenv("AEONIS_API_KEY")
	if apiKey == "" {
		log.Fatal("AEONIS_API_KEY environment variable not set")
	}

	aeonisTracer := tracer.NewTracer(
		"bandroom",
		"http://localhost:8000/v1/traces",
		apiKey,
		tracer.NewPIISanitizer(),
	)
	defer aeonisTracer.Shutdown()

	handlers.SetTracer(aeonisTracer)

	database.ConnectDatabase()

	dispatcher := notify.NewDispatcher(notify.LogSink{})
	dispatcher.Start()
	defer dispatcher.Stop()
	notify.SetDispatcher(dispatcher)

	// Stale PENDING payments auto-confirm after their 7-day window; the sweep
	// competes with human confirm/dispute via the same conditional update.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 10m", func() {
		if _, err := dues.AutoConfirmSweep(context.Background()); err != nil {
			log.Printf("auto-confirm sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule auto-confirm sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	r := gin.Default()

	// Middleware to create the root span for each request.
	r.Use(func(c *gin.Context) {
		ctx, span := aeonisTracer.StartSpan(c.Request.Context(), c.Request.URL.Path)
		defer span.End()

		span.SetAttributes(map[string]interface{}{
			"http.method":     c.Request.Method,
			"http.url":        c.Request.URL.String(),
			"http.client_ip":  c.ClientIP(),
			"http.user_agent": c.Request.UserAgent(),
		})

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(map[string]interface{}{
			"http.status_code": c.Writer.Status(),
		})
	})

	authRequired := r.Group("/")
	authRequired.Use(handlers.AuthMiddleware())
	{
		authRequired.POST("/bands", handlers.CreateBand)
		authRequired.POST("/bands/:id/members", handlers.AddMember)
		authRequired.PUT("/bands/:id/members/:user_id/role", handlers.SetMemberRole)
		authRequired.PUT("/bands/:id/members/:user_id/treasurer", handlers.SetTreasurer)
		authRequired.PUT("/bands/:id/finance_settings", handlers.UpsertFinanceSettings)
		authRequired.POST("/bands/:id/dues_plan", handlers.CreateDuesPlan)
		authRequired.GET("/bands/:id/standing", handlers.GetStanding)
		authRequired.GET("/bands/:id/dues_summary", handlers.GetBandDuesSummary)
		authRequired.GET("/bands/:id/payments", handlers.ListBandPayments)
		authRequired.GET("/user/:id/bands", handlers.GetUserBands)

		authRequired.POST("/payments", handlers.RecordPayment)
		authRequired.POST("/payments/:id/confirm", handlers.ConfirmPayment)
		authRequired.POST("/payments/:id/dispute", handlers.DisputePayment)
		authRequired.POST("/payments/:id/resolve", handlers.ResolvePayment)

		authRequired.POST("/bands/:id/votes", handlers.RequireGoodStanding("id"), handlers.CreateVote)
		authRequired.POST("/bands/:id/votes/:vote_id/close", handlers.CloseVote)
	}

	r.POST("/users", handlers.CreateUser)
	// Token-bearing confirmation links work without authentication.
	r.POST("/payments/:id/confirm_token", handlers.ConfirmPaymentByToken)
	r.POST("/admin/clear_db", handlers.ClearDatabase)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	log.Fatal(r.Run(":" + port))
}
