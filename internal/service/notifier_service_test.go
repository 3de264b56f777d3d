package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	"github.com/lifeshare/bloodlink-api/pkg/jobs"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
	want int
}

func (c *captureSender) Send(ctx context.Context, to, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to)
	if len(c.sent) == c.want {
		close(c.done)
	}
	return nil
}

func TestQueueContactExchangeSendsBothParties(t *testing.T) {
	sender := &captureSender{done: make(chan struct{}), want: 2}
	svc := NewNotifierService(sender, zap.NewNop(), jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.QueueContactExchange(models.CompletionResult{
		Donor:     models.ContactCard{Name: "Dev", Phone: "+911", Email: "dev@example.com"},
		Requester: models.ContactCard{Name: "Rhea", Phone: "+912", Email: "rhea@example.com"},
	})

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected both messages to be dispatched")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.ElementsMatch(t, []string{"+911", "+912"}, sender.sent)
}

func TestQueueContactExchangeSkipsMissingPhone(t *testing.T) {
	sender := &captureSender{done: make(chan struct{}), want: 1}
	svc := NewNotifierService(sender, zap.NewNop(), jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.QueueContactExchange(models.CompletionResult{
		Donor:     models.ContactCard{Name: "Dev", Phone: ""},
		Requester: models.ContactCard{Name: "Rhea", Phone: "+912"},
	})

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the requester message to be dispatched")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, []string{"+912"}, sender.sent)
}
