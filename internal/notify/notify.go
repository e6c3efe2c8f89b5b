// Package notify is the notification sink: notices are persisted for the
// in-app inbox and, when a broker is configured, published as alerts over
// MQTT. Delivery is best-effort; callers must never fail a mutation because a
// notice could not be sent.
package notify

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/tuorg/fleetcare/internal/db"
	"github.com/tuorg/fleetcare/internal/models"
)

// publishTimeout bounds how long a Notify call waits on the broker.
const publishTimeout = 5 * time.Second

// Service persists notifications and fans them out to MQTT.
type Service struct {
	store      db.NotificationCollection
	mqttClient mqtt.Client
	topic      string
}

// NewService creates a notification service. mqttClient may be nil, which
// disables the MQTT fan-out.
func NewService(store db.NotificationCollection, mqttClient mqtt.Client, topic string) *Service {
	return &Service{store: store, mqttClient: mqttClient, topic: topic}
}

// ConnectMQTT dials the broker and returns a connected client.
func ConnectMQTT(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(publishTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, context.DeadlineExceeded
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// Notify stores the notification and publishes it to the alert topic. The
// MQTT publish failing does not fail the call; only the store write does.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return err
	}

	s.publish(n)
	return nil
}

func (s *Service) publish(n models.Notification) {
	if s.mqttClient == nil || !s.mqttClient.IsConnected() {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		log.WithError(err).Warn("Failed to marshal notification for MQTT")
		return
	}

	token := s.mqttClient.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		log.WithFields(log.Fields{
			"topic": s.topic,
			"title": n.Title,
		}).WithError(token.Error()).Warn("Failed to publish notification to MQTT")
	}
}
