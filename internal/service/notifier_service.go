package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/core/ports"

	"github.com/rs/zerolog"
)

// notifierRetryIntervals defines the delivery retry schedule. At-least-once:
// a duplicate delivery is preferable to a missed one, and the consumer keys
// on entity IDs.
var notifierRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NotifierService implements ports.EventPublisher by delivering signed JSON
// events to the notification collaborator's endpoint. Delivery is
// fire-and-forget: failures are logged and never affect core state.
type NotifierService struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewNotifierService creates a new NotifierService.
func NewNotifierService(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *NotifierService {
	return &NotifierService{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// PublishTransactionSettled emits a TRANSACTION_SETTLED event.
func (s *NotifierService) PublishTransactionSettled(ctx context.Context, t *domain.Transaction) {
	s.publish(domain.Event{
		Type:       domain.EventTransactionSettled,
		AccountID:  t.AccountID,
		EntityID:   t.ID,
		Amount:     t.Amount,
		Status:     string(t.Status),
		OccurredAt: time.Now().UTC(),
	})
}

// PublishSubmissionApproved emits a SUBMISSION_APPROVED event.
func (s *NotifierService) PublishSubmissionApproved(ctx context.Context, sub *domain.Submission) {
	s.publish(domain.Event{
		Type:       domain.EventSubmissionApproved,
		AccountID:  sub.AccountID,
		EntityID:   sub.ID,
		Status:     string(sub.Status),
		OccurredAt: time.Now().UTC(),
	})
}

// PublishSubmissionRejected emits a SUBMISSION_REJECTED event.
func (s *NotifierService) PublishSubmissionRejected(ctx context.Context, sub *domain.Submission) {
	s.publish(domain.Event{
		Type:       domain.EventSubmissionRejected,
		AccountID:  sub.AccountID,
		EntityID:   sub.ID,
		Status:     string(sub.Status),
		Reason:     sub.Notes,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *NotifierService) publish(event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", event.Type).Msg("notifier: failed to marshal event")
		return
	}
	go s.deliverWithRetries(payload, event.Type)
}

// deliverWithRetries attempts delivery on a fixed backoff schedule.
func (s *NotifierService) deliverWithRetries(payload []byte, eventType string) {
	signature := s.sigSvc.Sign(s.secret, string(payload))

	for attempt := 0; attempt <= len(notifierRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(notifierRetryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			s.log.Error().Err(err).Str("event_type", eventType).Msg("notifier: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signature)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("event_type", eventType).Int("attempt", attempt+1).Msg("notifier: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Debug().Str("event_type", eventType).Int("attempt", attempt+1).Msg("notifier: event delivered")
			return
		}

		s.log.Warn().Str("event_type", eventType).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("notifier: non-2xx response, retrying")
	}

	s.log.Error().Str("event_type", eventType).Msg("notifier: all retry attempts exhausted")
}

// NopPublisher is used when no notifier endpoint is configured and in tests.
type NopPublisher struct{}

func (NopPublisher) PublishTransactionSettled(context.Context, *domain.Transaction) {}
func (NopPublisher) PublishSubmissionApproved(context.Context, *domain.Submission)  {}
func (NopPublisher) PublishSubmissionRejected(context.Context, *domain.Submission)  {}
