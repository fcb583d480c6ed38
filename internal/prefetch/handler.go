// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package prefetch

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
)

// Warmer loads movie detail data into the caches.
type Warmer interface {
	Warm(ctx context.Context, id int) error
}

// Handler consumes prefetch jobs. Prefetching is speculative, so it never
// asks for redelivery: malformed jobs and failed ids are logged and the
// message is acked.
type Handler struct {
	warmer Warmer
}

// NewHandler warms every job id through warmer.
func NewHandler(warmer Warmer) *Handler {
	return &Handler{warmer: warmer}
}

// Handle is a watermill NoPublishHandlerFunc.
func (h *Handler) Handle(msg *message.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		metrics.PrefetchJobs.WithLabelValues("invalid").Inc()
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed prefetch job")
		return nil
	}

	ids := uniquePositive(job.IDs)
	if len(ids) == 0 {
		metrics.PrefetchJobs.WithLabelValues("invalid").Inc()
		return nil
	}

	ctx := msg.Context()
	failed := 0
	for i, id := range ids {
		if ctx.Err() != nil {
			failed += len(ids) - i
			break
		}
		if err := h.warmer.Warm(ctx, id); err != nil {
			failed++
			logging.Debug().Err(err).Int("movie_id", id).Str("priority", job.Priority.String()).Msg("Prefetch warm failed")
		}
	}

	switch {
	case failed == 0:
		metrics.PrefetchJobs.WithLabelValues("ok").Inc()
	case failed < len(ids):
		metrics.PrefetchJobs.WithLabelValues("partial").Inc()
	default:
		metrics.PrefetchJobs.WithLabelValues("failed").Inc()
	}
	return nil
}

// uniquePositive drops non-positive ids and duplicates, keeping first-seen order.
func uniquePositive(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
