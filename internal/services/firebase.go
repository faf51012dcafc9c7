package services

import (
	"context"
	"fmt"
	"log"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	// FirebaseApp is the Firebase app instance
	FirebaseApp *firebase.App
	// MessagingClient is the Firebase Cloud Messaging client
	MessagingClient *messaging.Client
)

// AlertTopic is the FCM topic admin devices subscribe to for deviation
// alerts.
const AlertTopic = "deviation-alerts"

// InitFirebase initializes Firebase Admin SDK
func InitFirebase() error {
	ctx := context.Background()

	// Check if Firebase is configured
	serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
	if serviceAccountPath == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT_PATH not set. Push notifications will be disabled.")
		return nil
	}

	// Initialize Firebase app
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing firebase app: %v", err)
	}

	// Initialize messaging client
	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting messaging client: %v", err)
	}

	FirebaseApp = app
	MessagingClient = client

	log.Println("Firebase Cloud Messaging initialized successfully")
	return nil
}

// SendPushNotification sends a push to a single device token. A missing
// messaging client (Firebase not configured) is not an error.
func SendPushNotification(ctx context.Context, token, title, body string, data map[string]string) error {
	if MessagingClient == nil || token == "" {
		return nil
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "transitgo_default",
			},
		},
	}

	id, err := MessagingClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %v", err)
	}
	log.Printf("Push notification sent: %s", id)
	return nil
}

// SendPushToTopic fans a push out to an FCM topic.
func SendPushToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	if MessagingClient == nil {
		return nil
	}

	msg := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	id, err := MessagingClient.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send topic push: %v", err)
	}
	log.Printf("Topic push sent to %s: %s", topic, id)
	return nil
}
