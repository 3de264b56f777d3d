package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeshare/bloodlink-api/internal/models"
	"github.com/lifeshare/bloodlink-api/pkg/jobs"
	"github.com/lifeshare/bloodlink-api/pkg/sms"
)

const jobTypeContactSMS = "contact_exchange_sms"

type contactSMSPayload struct {
	To   string
	Body string
}

// NotifierService dispatches contact-exchange SMS through a background job
// queue. Delivery is best effort: a dead SMS provider delays nothing and
// fails nothing in the completion flow.
type NotifierService struct {
	sender sms.Sender
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifierService constructs the notifier and its queue. Call Start before
// queueing and Stop on shutdown.
func NewNotifierService(sender sms.Sender, logger *zap.Logger, cfg jobs.QueueConfig) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{sender: sender, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("sms", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// QueueContactExchange enqueues one SMS to each party with the other's
// contact details. Enqueue failures are logged and swallowed.
func (s *NotifierService) QueueContactExchange(result models.CompletionResult) {
	messages := []contactSMSPayload{
		{
			To: result.Donor.Phone,
			Body: fmt.Sprintf("BloodLink: your offer was accepted. Reach the requester %s at %s / %s.",
				result.Requester.Name, result.Requester.Phone, result.Requester.Email),
		},
		{
			To: result.Requester.Phone,
			Body: fmt.Sprintf("BloodLink: you accepted an offer. Reach the donor %s at %s / %s.",
				result.Donor.Name, result.Donor.Phone, result.Donor.Email),
		},
	}

	for _, msg := range messages {
		if msg.To == "" {
			continue
		}
		job := jobs.Job{ID: uuid.NewString(), Type: jobTypeContactSMS, Payload: msg}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue contact sms", zap.Error(err))
		}
	}
}

func (s *NotifierService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(contactSMSPayload)
	if !ok {
		s.logger.Error("unexpected sms job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.sender.Send(ctx, payload.To, payload.Body)
}
