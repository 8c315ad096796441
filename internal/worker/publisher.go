package worker

import (
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Publisher enqueues pipeline tasks from the API process. It satisfies the
// service-layer publisher interfaces so services stay unaware of asynq.
type Publisher struct {
	client     *asynq.Client
	maxRetries int
}

// NewPublisher creates a new task publisher
func NewPublisher(client *asynq.Client, maxRetries int) *Publisher {
	return &Publisher{
		client:     client,
		maxRetries: maxRetries,
	}
}

// PublishAnalyze enqueues anomaly analysis for one span
func (p *Publisher) PublishAnalyze(traceID, spanID string) error {
	task, err := NewTraceAnalyzeTask(&TraceAnalyzePayload{
		TraceID: traceID,
		SpanID:  spanID,
	})
	if err != nil {
		return err
	}
	_, err = p.client.Enqueue(task, asynq.Queue("default"))
	return err
}

// PublishDispatch enqueues webhook delivery for one alert
func (p *Publisher) PublishDispatch(alertID uuid.UUID) error {
	task, err := NewAlertDispatchTask(&AlertDispatchPayload{AlertID: alertID}, p.maxRetries)
	if err != nil {
		return err
	}
	_, err = p.client.Enqueue(task, asynq.Queue("critical"))
	return err
}
