package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"settlement-gateway/internal/core/domain"
	"settlement-gateway/internal/core/ports"
	"settlement-gateway/pkg/apperror"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Webhook request headers.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEvent     = "X-Webhook-Event"
	HeaderEventID   = "X-Webhook-ID"
	HeaderAttempt   = "X-Webhook-Attempt"
)

var (
	errDispatcherStopped = errors.New("webhook dispatcher stopped")
	errQueueFull         = errors.New("webhook queue full")
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DispatcherConfig sizes the delivery pool and fills endpoint settings that
// were left unset.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Defaults  domain.WebhookSettings
	Livemode  bool
}

type webhookJob struct {
	endpoint  domain.WebhookEndpoint
	event     domain.WebhookEvent
	body      []byte
	timestamp int64
}

// WebhookDispatcher delivers signed payment events to merchant endpoints.
// Jobs are sharded by (endpoint, payment) onto FIFO workers, so events for
// one pair arrive in order while other pairs proceed in parallel.
type WebhookDispatcher struct {
	endpoints  ports.WebhookEndpointRepository
	encSvc     ports.EncryptionService
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	metrics    ports.Metrics
	cfg        DispatcherConfig
	log        zerolog.Logger

	shards   []chan webhookJob
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	runCtx context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// NewWebhookDispatcher creates a dispatcher. Call Start before enqueueing.
func NewWebhookDispatcher(
	endpoints ports.WebhookEndpointRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	metrics ports.Metrics,
	cfg DispatcherConfig,
	log zerolog.Logger,
) *WebhookDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	d := &WebhookDispatcher{
		endpoints:  endpoints,
		encSvc:     encSvc,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		metrics:    metricsOrNop(metrics),
		cfg:        cfg,
		log:        log,
		shards:     make([]chan webhookJob, cfg.Workers),
		runCtx:     context.Background(),
		now:        time.Now,
	}
	for i := range d.shards {
		d.shards[i] = make(chan webhookJob, cfg.QueueSize)
	}
	return d
}

// Start launches one worker per shard. Cancelling ctx aborts pending
// retries.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	d.runCtx, d.cancel = context.WithCancel(ctx)
	for _, ch := range d.shards {
		d.wg.Add(1)
		go func(jobs <-chan webhookJob) {
			defer d.wg.Done()
			for job := range jobs {
				d.deliver(job)
			}
		}(ch)
	}
	d.log.Info().Int("workers", len(d.shards)).Msg("webhook dispatcher started")
}

// Stop refuses new jobs, lets queued ones finish and waits for the workers.
func (d *WebhookDispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
		d.mu.Unlock()

		d.wg.Wait()
		if d.cancel != nil {
			d.cancel()
		}
		d.log.Info().Msg("webhook dispatcher stopped")
	})
}

// Notify implements ports.EventNotifier. One event is built per lifecycle
// change and enqueued to every subscribed endpoint of the merchant.
func (d *WebhookDispatcher) Notify(ctx context.Context, payment *domain.Payment, eventType domain.EventType) error {
	endpoints, err := d.endpoints.ListByMerchant(ctx, payment.MerchantID)
	if err != nil {
		return fmt.Errorf("listing webhook endpoints: %w", err)
	}

	event := domain.WebhookEvent{
		EventID:    ulid.Make().String(),
		Type:       eventType,
		ID:         payment.PaymentID,
		MerchantID: payment.MerchantID.String(),
		Data:       payment.Snapshot(),
		Timestamp:  payment.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Livemode:   d.cfg.Livemode,
	}

	var errs []error
	for _, ep := range endpoints {
		if !ep.Subscribes(eventType) {
			continue
		}
		if err := d.Enqueue(ctx, ep, eventType, event); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ep.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Enqueue schedules delivery of payload to endpoint. The body is rendered
// once here, so every attempt and every re-delivery of the same event
// carries the same bytes and signature.
//
// Enqueue never waits for a worker. When the endpoint's shard is full the
// event is dropped, counted as a failed delivery on the endpoint and
// reported as WHK_001.
func (d *WebhookDispatcher) Enqueue(ctx context.Context, endpoint domain.WebhookEndpoint, eventType domain.EventType, payload domain.WebhookEvent) error {
	payload.Type = eventType
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook event: %w", err)
	}

	ts := d.now().Unix()
	if t, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
		ts = t.Unix()
	}

	job := webhookJob{endpoint: endpoint, event: payload, body: body, timestamp: ts}
	shard := xxhash.Sum64String(endpoint.ID.String()+"|"+payload.ID) % uint64(len(d.shards))

	if queued, err := d.offer(shard, job); queued || err != nil {
		return err
	}

	d.log.Warn().
		Str("event_id", payload.EventID).
		Str("event_type", string(eventType)).
		Str("payment_id", payload.ID).
		Str("endpoint_id", endpoint.ID.String()).
		Msg("webhook: queue full, event dropped")
	d.recordWith(context.WithoutCancel(ctx), job, domain.WebhookDeliveryAttempt{Err: errQueueFull}, "not delivered: "+errQueueFull.Error())
	return apperror.ErrWebhookEnqueue(errQueueFull)
}

// offer puts job on its shard without blocking. It reports false when the
// shard is full.
func (d *WebhookDispatcher) offer(shard uint64, job webhookJob) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false, errDispatcherStopped
	}
	select {
	case d.shards[shard] <- job:
		return true, nil
	default:
		return false, nil
	}
}

// ResetStats implements ports.WebhookAdmin.
func (d *WebhookDispatcher) ResetStats(ctx context.Context, endpointID uuid.UUID) error {
	ep, err := d.endpoints.GetByID(ctx, endpointID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if ep == nil {
		return apperror.ErrNotFound("Webhook endpoint")
	}
	if err := d.endpoints.ResetStats(ctx, endpointID); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	d.log.Info().Str("endpoint_id", endpointID.String()).Msg("webhook delivery stats reset")
	return nil
}

func (d *WebhookDispatcher) deliver(job webhookJob) {
	settings := d.settingsFor(job.endpoint)
	log := d.log.With().
		Str("event_id", job.event.EventID).
		Str("event_type", string(job.event.Type)).
		Str("payment_id", job.event.ID).
		Str("endpoint_id", job.endpoint.ID.String()).
		Logger()

	secret, err := d.encSvc.Decrypt(job.endpoint.SecretEnc)
	if err != nil {
		log.Error().Err(err).Msg("webhook: endpoint secret unavailable, dropping event")
		d.record(job, domain.WebhookDeliveryAttempt{Err: err}, "endpoint secret unavailable")
		return
	}
	signature := d.sigSvc.Sign(secret, job.body)

	for attempt := 1; attempt <= settings.RetryAttempts; attempt++ {
		if wait := settings.DelayBefore(attempt); wait > 0 {
			if err := sleepCtx(d.runCtx, wait); err != nil {
				log.Warn().Int("attempt", attempt).Msg("webhook: shutdown before retry")
				return
			}
		}

		a := d.attempt(job, signature, attempt, settings.Timeout)
		if a.Succeeded() {
			d.record(job, a, "")
			log.Info().Int("attempt", attempt).Int("status", a.StatusCode).Dur("duration", a.Duration).Msg("webhook: delivered")
			return
		}

		reason := failureReason(a)
		if attempt == settings.RetryAttempts {
			reason = fmt.Sprintf("retries exhausted after %d attempts: %s", attempt, reason)
		}
		d.record(job, a, reason)
		log.Warn().Int("attempt", attempt).Int("status", a.StatusCode).Err(a.Err).Msg("webhook: delivery attempt failed")
	}

	log.Error().Int("attempts", settings.RetryAttempts).Msg("webhook: retries exhausted")
}

func (d *WebhookDispatcher) attempt(job webhookJob, signature string, attempt int, timeout time.Duration) domain.WebhookDeliveryAttempt {
	a := domain.WebhookDeliveryAttempt{
		EventID:    job.event.EventID,
		EndpointID: job.endpoint.ID,
		PaymentID:  job.event.ID,
		EventType:  job.event.Type,
		Attempt:    attempt,
	}

	ctx, cancel := context.WithTimeout(d.runCtx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.endpoint.URL, bytes.NewReader(job.body))
	if err != nil {
		a.Err = err
		return a
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "settlement-gateway-webhooks/1.0")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(job.timestamp, 10))
	req.Header.Set(HeaderEvent, string(job.event.Type))
	req.Header.Set(HeaderEventID, job.event.EventID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))

	start := d.now()
	resp, err := d.httpClient.Do(req)
	a.Duration = d.now().Sub(start)
	if err != nil {
		a.Err = err
		return a
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	a.StatusCode = resp.StatusCode
	return a
}

func (d *WebhookDispatcher) record(job webhookJob, a domain.WebhookDeliveryAttempt, reason string) {
	// Stats must survive shutdown of the run context.
	d.recordWith(context.WithoutCancel(d.runCtx), job, a, reason)
}

func (d *WebhookDispatcher) recordWith(ctx context.Context, job webhookJob, a domain.WebhookDeliveryAttempt, reason string) {
	outcome := domain.DeliveryOutcome{Success: a.Succeeded(), FailureReason: reason, At: d.now().UTC()}

	label := "failure"
	if outcome.Success {
		label = "success"
	}
	d.metrics.WebhookAttempt(label, a.Duration)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.endpoints.RecordDelivery(ctx, job.endpoint.ID, outcome); err != nil {
		d.log.Error().Err(err).Str("endpoint_id", job.endpoint.ID.String()).Msg("webhook: failed to record delivery stats")
	}
}

func (d *WebhookDispatcher) settingsFor(ep domain.WebhookEndpoint) domain.WebhookSettings {
	s := ep.Settings
	if s.Timeout <= 0 {
		s.Timeout = d.cfg.Defaults.Timeout
	}
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
	if s.RetryAttempts <= 0 {
		s.RetryAttempts = d.cfg.Defaults.RetryAttempts
	}
	if s.RetryAttempts <= 0 {
		s.RetryAttempts = 1
	}
	if len(s.RetryDelays) == 0 {
		s.RetryDelays = d.cfg.Defaults.RetryDelays
	}
	return s
}

func failureReason(a domain.WebhookDeliveryAttempt) string {
	if a.Err != nil {
		if errors.Is(a.Err, context.DeadlineExceeded) {
			return "timeout"
		}
		return a.Err.Error()
	}
	return fmt.Sprintf("HTTP %d", a.StatusCode)
}
