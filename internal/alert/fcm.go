package alert

import (
	"context"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"google.golang.org/api/option"

	"hft/internal/schema"
	"hft/pkg/exception"
)

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM sends alerts as Firebase Cloud Messaging topic messages.
type FCM struct {
	client messagingClient
	topic  string
}

// NewFCM returns nil when credentialsFile is empty or missing.
func NewFCM(ctx context.Context, credentialsFile, topic string) (*FCM, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		logs.Warnf("fcm credentials %s not found, push notifications disabled", credentialsFile)
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, errors.Wrap(exception.ErrConfig, "init firebase app").With("error", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(exception.ErrConfig, "init firebase messaging").With("error", err)
	}

	logs.Infof("fcm notifier enabled, topic: %s", topic)
	return &FCM{client: client, topic: topic}, nil
}

func (f *FCM) Name() string {
	return "fcm"
}

func (f *FCM) Notify(ctx context.Context, a schema.Alert) error {
	data := make(map[string]string, len(a.Metadata)+2)
	for k, v := range a.Metadata {
		data[k] = v
	}
	data["level"] = a.Level.String()
	data["source"] = a.Source

	id, err := f.client.Send(ctx, &messaging.Message{
		Notification: &messaging.Notification{
			Title: title(a),
			Body:  a.Message,
		},
		Data:  data,
		Topic: f.topic,
	})
	if err != nil {
		return errors.Wrap(exception.ErrHTTP, "fcm send").With("topic", f.topic, "error", err)
	}
	logs.Infof("fcm alert sent, id: %s", id)
	return nil
}
