package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	deliveryTimeout  = 10 * time.Second
	maxAttempts      = 3
	retryBackoffBase = 2 * time.Second
)

// Dispatcher delivers events from an in-process worker pool. Failed
// deliveries are rescheduled with linear backoff off-worker (a timer
// re-enqueues the job), so a slow subscriber never stalls the pool.
type Dispatcher struct {
	registry *Registry
	client   *http.Client
	queue    chan deliveryJob
	log      *slog.Logger
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type deliveryJob struct {
	sub     *Subscription
	event   ScreeningEvent
	payload []byte
	attempt int
}

func NewDispatcher(registry *Registry, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	d := &Dispatcher{
		registry: registry,
		client:   &http.Client{Timeout: deliveryTimeout},
		queue:    make(chan deliveryJob, 1000),
		log:      slog.Default(),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Emit fans one event out to every matching subscription of the
// event's tenant. Never blocks: a full queue drops the delivery and
// counts it as a failure for that subscription.
func (d *Dispatcher) Emit(event ScreeningEvent) {
	subs := d.registry.ForEvent(event.Type, event.TenantID)
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error("webhook: marshal event", "event_id", event.EventID, "error", err)
		return
	}

	for _, sub := range subs {
		d.enqueue(deliveryJob{sub: sub, event: event, payload: payload, attempt: 1})
	}
}

func (d *Dispatcher) enqueue(job deliveryJob) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	select {
	case d.queue <- job:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.log.Warn("webhook: queue full, dropping delivery", "event_id", job.event.EventID, "subscription", job.sub.ID)
		d.registry.MarkFailed(job.sub.ID)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job deliveryJob) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.sub.URL, bytes.NewReader(job.payload))
	if err != nil {
		d.log.Error("webhook: build request", "subscription", job.sub.ID, "error", err)
		return
	}
	setDeliveryHeaders(req.Header.Set, job.sub, job.event, job.payload, job.attempt)

	resp, err := d.client.Do(req)
	if err == nil {
		defer resp.Body.Close()
	}

	if err == nil && resp.StatusCode < 400 {
		d.registry.MarkDelivered(job.sub.ID)
		d.log.Debug("webhook delivered", "event_id", job.event.EventID, "type", job.event.Type, "subscription", job.sub.ID)
		return
	}

	d.registry.MarkFailed(job.sub.ID)
	if err != nil {
		d.log.Warn("webhook delivery failed", "event_id", job.event.EventID, "subscription", job.sub.ID, "attempt", job.attempt, "error", err)
	} else {
		d.log.Warn("webhook delivery rejected", "event_id", job.event.EventID, "subscription", job.sub.ID, "attempt", job.attempt, "status", resp.StatusCode)
	}

	if job.attempt >= maxAttempts {
		return
	}
	job.attempt++
	// Re-enqueue after a delay without occupying the worker.
	time.AfterFunc(time.Duration(job.attempt-1)*retryBackoffBase, func() {
		d.enqueue(job)
	})
}

// setDeliveryHeaders writes the outbound header set shared by the
// in-memory and Cloud Tasks paths.
func setDeliveryHeaders(set func(k, v string), sub *Subscription, event ScreeningEvent, payload []byte, attempt int) {
	set("Content-Type", "application/json")
	set("X-Screening-Event-Type", string(event.Type))
	set("X-Screening-Event-ID", event.EventID)
	set("X-Screening-Delivery-Attempt", strconv.Itoa(attempt))
	if sub.Secret != "" {
		set("X-Screening-Signature", "sha256="+SignPayload(payload, sub.Secret))
	}
}

// Shutdown stops accepting new deliveries and drains the queue.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}
