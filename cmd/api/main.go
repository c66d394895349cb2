package main

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	config "github.com/mutisya87/trainer_marketplace/configs"
	"github.com/mutisya87/trainer_marketplace/database"
	"github.com/mutisya87/trainer_marketplace/escrow"
	"github.com/mutisya87/trainer_marketplace/handlers"
	"github.com/mutisya87/trainer_marketplace/jobs"
	"github.com/mutisya87/trainer_marketplace/notifications"
	"github.com/mutisya87/trainer_marketplace/payments"
	"github.com/mutisya87/trainer_marketplace/routes"
	"github.com/mutisya87/trainer_marketplace/websocket"
)

func holdWindow() time.Duration {
	hours, err := strconv.Atoi(config.Config("HOLD_WINDOW_HOURS"))
	if err != nil || hours <= 0 {
		return escrow.DefaultHoldWindow
	}
	return time.Duration(hours) * time.Hour
}

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()

	store := escrow.NewStore(database.DB)
	ledger := escrow.NewLedger(store, escrow.DefaultPolicy, holdWindow())

	gateway, err := payments.NewHTTPGateway()
	if err != nil {
		log.Fatalf("🔥 Payment gateway configuration error: %v", err)
	}
	accounts := payments.NewAccountStore(database.DB)
	connector := payments.NewConnector(gateway, accounts, ledger)

	webhookSvc := payments.NewWebhookService(
		config.Config("GATEWAY_WEBHOOK_SECRET"),
		payments.NewEventStore(database.DB),
		payments.NewBookingMarker(database.DB),
		accounts,
		ledger,
	)

	ledger.Subscribe(notifications.SettlementEventSink)
	ledger.Subscribe(websocket.EventSink)

	handlers.InitSettlement(ledger, connector, webhookSvc)

	settlement := jobs.NewSettlementJob(ledger, connector)
	c := cron.New()
	c.AddJob("0 * * * *", settlement)
	c.AddFunc("0 6 1 * *", jobs.GenerateMonthlyStatements)
	go c.Start()
	log.Println("✅ Settlement and statement jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Trainer Marketplace",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		PassLocalsToViews: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Trainer Marketplace API",
		})
	})

	routes.PublicRoutes(app)
	routes.AuthRoutes(app)
	routes.BookingRoutes(app)
	routes.EscrowRoutes(app)
	routes.PaymentRoutes(app)
	routes.AdminRoutes(app)

	go websocket.RunHub()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	if err := app.Listen(":8080"); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
