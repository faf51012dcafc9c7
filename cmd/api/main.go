package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mwangikev/transitgo-backend/internal/database"
	"github.com/mwangikev/transitgo-backend/internal/handlers"
	"github.com/mwangikev/transitgo-backend/internal/middleware"
	"github.com/mwangikev/transitgo-backend/internal/services"
	"github.com/mwangikev/transitgo-backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Firebase (optional - will log warning if not configured)
	if err := services.InitFirebase(); err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	st := store.New(db)
	flags := services.NewRedisFlagStore(services.RedisClient)
	notifier := services.NewNotifier(hub)
	gateway := services.NewPayPalClientFromEnv()
	geocoder := services.NewNominatimGeocoder()

	notifyBooking := func(bookingID uint, kind string) {
		detail, err := st.GetBookingDetail(context.Background(), bookingID)
		if err != nil || detail.User == nil {
			return
		}
		routeName := ""
		if detail.Trip != nil && detail.Trip.Route != nil {
			routeName = detail.Trip.Route.Name
		}
		notifier.BookingEvent(detail.User, kind, detail, routeName)
	}

	// Reservation hold timers plus the restart-safe expiry sweep.
	scheduler := services.NewReservationScheduler(st, flags)
	scheduler.OnExpired = func(bookingID uint) { notifyBooking(bookingID, "expired") }
	go scheduler.RunSweep(context.Background(), time.Minute)

	reconciler := services.NewPaymentReconciler(st, gateway, scheduler, flags)
	reconciler.Notify = notifyBooking

	detector := services.NewDeviationDetector(st, flags, geocoder, hub, notifier)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// Payment gateway callbacks: the webhook authenticates by
		// signature, the redirects arrive from the payer's browser.
		payments := api.Group("/payments")
		{
			payments.POST("/webhook", handlers.PaymentWebhook(reconciler, gateway))
			payments.GET("/success", handlers.PaymentSuccess(reconciler))
			payments.GET("/cancel", handlers.PaymentCancel(reconciler))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			// Driver telemetry
			driver := protected.Group("/driver")
			{
				driver.POST("/position", handlers.ReportPosition(st, detector, hub))
			}

			// Trips
			trips := protected.Group("/trips")
			{
				trips.POST("", handlers.CreateTrip(st))
				trips.GET("", handlers.GetTrips(st))
				trips.GET("/:id", handlers.GetTrip(st))
				trips.PATCH("/:id/status", handlers.UpdateTripStatus(st))
			}

			// Bookings
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(st, scheduler, gateway, flags, notifier))
				bookings.GET("", handlers.GetUserBookings(st))
				bookings.GET("/:id", handlers.GetBooking(st))
				bookings.POST("/:id/cancel", handlers.CancelBooking(st, scheduler, flags, notifier))
			}

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
