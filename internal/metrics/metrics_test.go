// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("INSERT", "metrics_test"))

	RecordDBQuery("INSERT", "metrics_test", 5*time.Millisecond, nil)
	RecordDBQuery("INSERT", "metrics_test", 5*time.Millisecond, errors.New("constraint"))

	if got := testutil.ToFloat64(DBQueryErrors.WithLabelValues("INSERT", "metrics_test")) - before; got != 1 {
		t.Errorf("expected 1 query error, got %v", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("GET", "/metrics-test", "200")
	before := testutil.ToFloat64(counter)

	RecordAPIRequest("GET", "/metrics-test", "200", 10*time.Millisecond)
	RecordAPIRequest("GET", "/metrics-test", "200", 20*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("expected %v active, got %v", before+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("expected %v active, got %v", before, got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("metrics_test"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("metrics_test"))

	RecordCacheLookup("metrics_test", true)
	RecordCacheLookup("metrics_test", false)
	RecordCacheLookup("metrics_test", false)

	if got := testutil.ToFloat64(CacheHits.WithLabelValues("metrics_test")) - hits; got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("metrics_test")) - misses; got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
}

func TestRecordSync(t *testing.T) {
	items := testutil.ToFloat64(SyncItems.WithLabelValues("metrics_test"))
	errs := testutil.ToFloat64(SyncErrors.WithLabelValues("metrics_test"))

	RecordSync("metrics_test", time.Second, 25, nil)
	RecordSync("metrics_test", time.Second, 10, errors.New("tmdb down"))

	if got := testutil.ToFloat64(SyncItems.WithLabelValues("metrics_test")) - items; got != 25 {
		t.Errorf("expected 25 items, got %v", got)
	}
	if got := testutil.ToFloat64(SyncErrors.WithLabelValues("metrics_test")) - errs; got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
	if testutil.ToFloat64(SyncLastSuccess.WithLabelValues("metrics_test")) == 0 {
		t.Error("expected last success timestamp to be set")
	}
}
