// Package audit records a durable trail of consumer outcomes (begin,
// success, cancel, failure) to Kafka, tagged with a correlation ID and the
// requesting browser's parsed user agent, for operators who need to
// reconstruct "what happened to this login" after the fact.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one audit record.
type Event struct {
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	Kind            string    `json:"kind"` // begin, success, cancel, failure, setup needed
	IdentityURL     string    `json:"identity_url,omitempty"`
	ServerURL       string    `json:"server_url,omitempty"`
	Message         string    `json:"message,omitempty"`
	BrowserFamily   string    `json:"browser_family,omitempty"`
	BrowserVersion  string    `json:"browser_version,omitempty"`
}

// Trail produces Events to a Kafka topic.
type Trail struct {
	client *kgo.Client
	topic  string
}

const defaultTopic = "openid.rp.audit"

// New dials brokers, ensures the audit topic exists, and returns a Trail
// producing to it.
func New(ctx context.Context, brokers []string, topic string) (*Trail, error) {
	if topic == "" {
		topic = defaultTopic
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("audit: create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("audit: ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("audit: ensure topic %s: %w", topic, resp.Err)
	}

	return &Trail{client: client, topic: topic}, nil
}

// Close releases the underlying Kafka client.
func (t *Trail) Close() {
	t.client.Close()
}

// Record produces a single Event, parsing userAgent into its browser
// family/version. It blocks until the broker acknowledges the write.
func (t *Trail) Record(ctx context.Context, kind, identityURL, serverURL, message, userAgent string) error {
	ev := Event{
		ID:          uuid.NewString(),
		Time:        time.Now(),
		Kind:        kind,
		IdentityURL: identityURL,
		ServerURL:   serverURL,
		Message:     message,
	}
	if userAgent != "" {
		ua := useragent.New(userAgent)
		ev.BrowserFamily, ev.BrowserVersion = ua.Browser()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	record := &kgo.Record{Topic: t.topic, Key: []byte(ev.ID), Value: payload}
	result := t.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("audit: produce event: %w", err)
	}
	return nil
}
