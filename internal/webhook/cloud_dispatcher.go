package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
)

// CloudDispatcher delivers events through a Google Cloud Tasks queue
// for durable, at-least-once delivery: queue-level retry with backoff,
// dead-lettering for permanently failing subscribers, and rate limits
// all live in the queue configuration rather than in this process.
// When a task cannot even be enqueued, delivery degrades to the
// in-memory Dispatcher so an outage of the queue doesn't silently drop
// lifecycle events.
type CloudDispatcher struct {
	registry  *Registry
	client    *cloudtasks.Client
	queuePath string
	queueID   string
	log       *slog.Logger
	fallback  *Dispatcher
}

// NewCloudDispatcher dials Cloud Tasks. fallbackWorkers > 0 also
// starts the in-memory pool used when enqueueing fails.
func NewCloudDispatcher(
	registry *Registry,
	projectID, locationID, queueID string,
	fallbackWorkers int,
) (*CloudDispatcher, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks.NewClient: %w", err)
	}

	cd := &CloudDispatcher{
		registry:  registry,
		client:    client,
		queuePath: fmt.Sprintf("projects/%s/locations/%s/queues/%s", projectID, locationID, queueID),
		queueID:   queueID,
		log:       slog.Default(),
	}
	if fallbackWorkers > 0 {
		cd.fallback = NewDispatcher(registry, fallbackWorkers)
	}

	cd.log.Info("cloud tasks webhook dispatcher ready", "queue", cd.queuePath)
	return cd, nil
}

// Emit creates one Cloud Task per matching subscription of the event's
// tenant. Task names are derived from (event, subscription) so a
// double-emit of the same event deduplicates inside the queue's
// dedup window instead of double-delivering.
func (cd *CloudDispatcher) Emit(event ScreeningEvent) {
	subs := cd.registry.ForEvent(event.Type, event.TenantID)
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		cd.log.Error("webhook: marshal event", "event_id", event.EventID, "error", err)
		return
	}

	for _, sub := range subs {
		cd.enqueueTask(sub, event, payload)
	}
}

func (cd *CloudDispatcher) enqueueTask(sub *Subscription, event ScreeningEvent, payload []byte) {
	headers := make(map[string]string, 5)
	setDeliveryHeaders(func(k, v string) { headers[k] = v }, sub, event, payload, 1)

	req := &taskspb.CreateTaskRequest{
		Parent: cd.queuePath,
		Task: &taskspb.Task{
			Name: cd.taskName(event.EventID, sub.ID),
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        sub.URL,
					Headers:    headers,
					Body:       payload,
				},
			},
		},
	}

	// Enqueue off the hot path; a failed enqueue falls back to direct
	// in-memory delivery for this one subscription.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := cd.client.CreateTask(ctx, req); err != nil {
			cd.log.Warn("cloud task enqueue failed", "event_id", event.EventID, "subscription", sub.ID, "error", err)
			if cd.fallback != nil {
				cd.fallback.enqueue(deliveryJob{sub: sub, event: event, payload: payload, attempt: 1})
			}
			return
		}
		cd.log.Debug("cloud task enqueued", "event_id", event.EventID, "subscription", sub.ID)
	}()
}

// taskName builds a queue-unique, deterministic task ID for one
// (event, subscription) pair; Cloud Tasks rejects duplicates, which is
// what gives Emit its dedup property.
func (cd *CloudDispatcher) taskName(eventID, subID string) string {
	sum := sha256.Sum256([]byte(eventID + "|" + subID))
	return cd.queuePath + "/tasks/evt-" + hex.EncodeToString(sum[:16])
}

// Shutdown closes the Cloud Tasks client and drains the fallback pool.
func (cd *CloudDispatcher) Shutdown() {
	if cd.fallback != nil {
		cd.fallback.Shutdown()
	}
	if err := cd.client.Close(); err != nil {
		cd.log.Warn("cloud tasks client close", "error", err)
	}
}

// HealthCheck verifies the queue exists and is reachable.
func (cd *CloudDispatcher) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := cd.client.GetQueue(ctx, &taskspb.GetQueueRequest{Name: cd.queuePath})
	return err
}
