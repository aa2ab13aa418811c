package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// NotificationMessage is the envelope published to the notifications topic
// after an offer event (creation, acceptance, rejection). Consumers fan it
// out to email/in-app channels.
type NotificationMessage struct {
	RecipientUserPublicId string    `json:"recipient_user_public_id"`
	EventType             string    `json:"event_type"`
	OfferPublicId         string    `json:"offer_public_id"`
	ListingPublicId       string    `json:"listing_public_id"`
	OccurredAt            time.Time `json:"occurred_at"`
	CorrelationId         string    `json:"correlation_id"`
}

const (
	NotificationEventOfferCreated  = "CATALOG_OFFER_CREATED"
	NotificationEventOfferReceived = "CATALOG_OFFER_RECEIVED"
	NotificationEventOfferAccepted = "CATALOG_OFFER_ACCEPTED"
	NotificationEventOfferRejected = "CATALOG_OFFER_REJECTED"
)

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

func init() {
	// Load env from .env
	godotenv.Load()
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	if v := os.Getenv("GCP_PROJECT"); v != "" {
		return v
	}
	return ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON"); credJSON != "" {
		c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		// Application Default Credentials.
		c, err = pubsub.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, err
	}
	pubsubClient = c
	return pubsubClient, nil
}

// PublishNotification sends one notification message. Callers treat failures
// as best-effort: log and continue, never fail the business operation.
func PublishNotification(ctx context.Context, msg *NotificationMessage) error {
	topicName := os.Getenv("NOTIFICATIONS_TOPIC")
	if topicName == "" {
		topicName = "marketplace-notifications"
	}

	client, err := getPubSubClient(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	result := topic.Publish(ctx, &pubsub.Message{Data: payload})
	_, err = result.Get(ctx)
	return err
}
