// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package prefetch

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
)

// TopicPrefix is the topic family for prefetch jobs; the priority is appended.
const TopicPrefix = "movie.prefetch."

// TopicFor returns the topic carrying jobs of priority p.
func TopicFor(p models.Priority) string {
	if !p.Valid() {
		p = models.PriorityNormal
	}
	return TopicPrefix + p.String()
}

// Job is the payload of a prefetch message.
type Job struct {
	IDs         []int           `json:"ids"`
	Priority    models.Priority `json:"priority"`
	RequestedAt time.Time       `json:"requested_at"`
}

// Dispatcher is the Worker used in production. It publishes each dispatch
// as a Job and returns without waiting for it to be processed.
type Dispatcher struct {
	publisher message.Publisher
	now       func() time.Time
}

var _ Worker = (*Dispatcher)(nil)

// NewDispatcher publishes jobs to publisher.
func NewDispatcher(publisher message.Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher, now: time.Now}
}

func (d *Dispatcher) Prefetch(id int, priority models.Priority) {
	d.publish(Job{IDs: []int{id}, Priority: priority, RequestedAt: d.now()})
}

func (d *Dispatcher) PrefetchBatch(ids []int, priority models.Priority) {
	d.publish(Job{IDs: ids, Priority: priority, RequestedAt: d.now()})
}

func (d *Dispatcher) publish(job Job) {
	if err := d.Publish(job); err != nil {
		metrics.PrefetchJobs.WithLabelValues("publish_error").Inc()
		logging.Warn().Err(err).Ints("ids", job.IDs).Str("priority", job.Priority.String()).Msg("Failed to publish prefetch job")
	}
}

// Publish encodes and publishes job, returning any error.
func (d *Dispatcher) Publish(job Job) error {
	if !job.Priority.Valid() {
		job.Priority = models.PriorityNormal
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode prefetch job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("priority", job.Priority.String())

	if err := d.publisher.Publish(TopicFor(job.Priority), msg); err != nil {
		return fmt.Errorf("publish prefetch job: %w", err)
	}
	return nil
}
