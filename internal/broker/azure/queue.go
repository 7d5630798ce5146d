// Package azure implements broker.Queue on Azure Queue Storage.
package azure

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/MrJamesThe3rd/grouper/internal/broker"
)

const (
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// NewServiceClient connects to serviceURL. Plain http endpoints are treated
// as Azurite and use its well-known shared key, anything else uses the
// default Azure credential chain.
func NewServiceClient(serviceURL string) (*azqueue.ServiceClient, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("queue service url is required")
	}

	if isLocal(serviceURL) {
		cred, err := azqueue.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("creating shared key credential: %w", err)
		}

		client, err := azqueue.NewServiceClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating queue service client with shared key: %w", err)
		}

		return client, nil
	}

	cred, err := newDefaultCredential()
	if err != nil {
		return nil, fmt.Errorf("creating default azure credential: %w", err)
	}

	client, err := azqueue.NewServiceClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating queue service client: %w", err)
	}

	return client, nil
}

func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

func newDefaultCredential() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

type Queue struct {
	name   string
	client *azqueue.QueueClient
	poison *azqueue.QueueClient
	opts   broker.Options
	logger *slog.Logger

	mu      sync.Mutex
	created bool
}

func New(service *azqueue.ServiceClient, name string, opts broker.Options, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		name:   name,
		client: service.NewQueueClient(name),
		poison: service.NewQueueClient(broker.PoisonName(name)),
		opts:   opts.WithDefaults(),
		logger: logger.With("queue", name),
	}
}

// ensure creates the queue and its poison queue on first use. Only success
// is remembered; a failed attempt is retried by the next caller.
func (q *Queue) ensure(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.created {
		return nil
	}

	for _, c := range []*azqueue.QueueClient{q.client, q.poison} {
		if _, err := c.Create(ctx, nil); err != nil && !alreadyExists(err) {
			return fmt.Errorf("creating queue: %w", err)
		}
	}

	q.created = true

	return nil
}

func alreadyExists(err error) bool {
	return strings.Contains(err.Error(), "QueueAlreadyExists")
}

// Send enqueues body base64 encoded, the format Azure Functions queue
// triggers expect.
func (q *Queue) Send(ctx context.Context, body []byte) error {
	if err := q.ensure(ctx); err != nil {
		return err
	}

	if _, err := q.client.EnqueueMessage(ctx, Encode(body), nil); err != nil {
		return fmt.Errorf("enqueuing message to %s: %w", q.name, err)
	}

	return nil
}

func (q *Queue) Consume(ctx context.Context, handler broker.Handler) error {
	if err := q.ensure(ctx); err != nil {
		return err
	}

	sem := make(chan struct{}, q.opts.Workers)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}

		resp, err := q.client.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
			NumberOfMessages:  to.Ptr(int32(q.opts.BatchSize)),
			VisibilityTimeout: to.Ptr(int32(q.opts.VisibilityTimeout / time.Second)),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			q.logger.Error("dequeuing messages", "error", err)
		}

		if err != nil || len(resp.Messages) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.opts.PollInterval):
			}

			continue
		}

		for _, m := range resp.Messages {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}

			wg.Add(1)

			go func(m *azqueue.DequeuedMessage) {
				defer wg.Done()
				defer func() { <-sem }()

				q.process(ctx, m, handler)
			}(m)
		}
	}
}

func (q *Queue) process(ctx context.Context, m *azqueue.DequeuedMessage, handler broker.Handler) {
	msg := broker.Message{
		ID:           deref(m.MessageID),
		DequeueCount: derefCount(m.DequeueCount),
	}

	logger := q.logger.With("message_id", msg.ID, "dequeue_count", msg.DequeueCount)

	body, err := Decode(deref(m.MessageText))
	if err != nil {
		logger.Error("decoding message", "error", err)
		q.moveToPoison(ctx, m, deref(m.MessageText), logger)

		return
	}

	if msg.DequeueCount > q.opts.MaxDequeueCount {
		logger.Warn("message exceeded max dequeue count")
		q.moveToPoison(ctx, m, deref(m.MessageText), logger)

		return
	}

	msg.Body = body

	if err := handler(ctx, msg); err != nil {
		logger.Error("handling message, leaving it for redelivery", "error", err)
		return
	}

	q.delete(ctx, m, logger)
}

func (q *Queue) moveToPoison(ctx context.Context, m *azqueue.DequeuedMessage, text string, logger *slog.Logger) {
	if _, err := q.poison.EnqueueMessage(ctx, text, nil); err != nil {
		logger.Error("moving message to poison queue", "error", err)
		return
	}

	q.delete(ctx, m, logger)
}

func (q *Queue) delete(ctx context.Context, m *azqueue.DequeuedMessage, logger *slog.Logger) {
	if _, err := q.client.DeleteMessage(ctx, deref(m.MessageID), deref(m.PopReceipt), nil); err != nil {
		logger.Error("deleting message", "error", err)
	}
}

func (q *Queue) Close() error {
	return nil
}

// Encode returns the queue representation of body.
func Encode(body []byte) string {
	return base64.StdEncoding.EncodeToString(body)
}

// Decode accepts base64 text and falls back to raw JSON written by tools
// that do not encode.
func Decode(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}

	body, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 message: %w", err)
	}

	return body, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func derefCount(n *int64) int64 {
	if n == nil {
		return 1
	}

	return *n
}

var _ broker.Queue = (*Queue)(nil)
