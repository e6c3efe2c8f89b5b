package main

import (
	"context"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"

	"github.com/tuorg/fleetcare/internal/auth"
	"github.com/tuorg/fleetcare/internal/config"
	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/fleet"
	"github.com/tuorg/fleetcare/internal/handlers"
	"github.com/tuorg/fleetcare/internal/middleware"
	"github.com/tuorg/fleetcare/internal/notify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}
	cfg := config.FromEnv()

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	log.Info("Connected to MongoDB")

	database := client.Database("fleetcare")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to create indexes")
	}
	cancel()

	buses := &db.MongoBusCollection{Collection: database.Collection("buses")}
	orders := &db.MongoOrderCollection{Collection: database.Collection("maintenance_orders")}
	notifications := &db.MongoNotificationCollection{Collection: database.Collection("notifications")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}

	var mqttClient mqtt.Client
	if cfg.MQTTBroker != "" {
		mqttClient, err = notify.ConnectMQTT(cfg.MQTTBroker, "fleetcare-backend")
		if err != nil {
			// Alerts degrade to inbox-only; the backend still runs.
			log.WithField("broker", cfg.MQTTBroker).WithError(err).Warn("MQTT unavailable, alerts disabled")
			mqttClient = nil
		} else {
			log.WithField("broker", cfg.MQTTBroker).Info("Connected to MQTT broker")
		}
	}
	notifier := notify.NewService(notifications, mqttClient, cfg.MQTTAlertTopic)

	locks := fleet.NewKeyedMutex()
	clock := clockz.RealClock
	busService := fleet.NewBusService(buses, notifier, locks, clock, cfg.Rules, cfg.OpsEmail)
	maintenanceService := fleet.NewMaintenanceService(orders, busService, notifications, locks, clock)
	autoScheduler := fleet.NewAutoScheduleService(orders, busService, notifier, locks, clock)

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	mux := handlers.NewRouter(
		handlers.NewBusHandler(busService, autoScheduler, clock),
		handlers.NewMaintenanceHandler(maintenanceService),
		handlers.NewNotificationHandler(notifications),
		handlers.NewAuthHandler(authService, users),
	)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(100, 60)(authMiddleware.Authenticate(mux))

	log.WithField("port", cfg.Port).Info("HTTP server listening")
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.WithError(err).Fatal("HTTP server stopped")
	}
}
