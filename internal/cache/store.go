// Cinifob - Movie Discovery and Watch Tracking
// Copyright 2026 hishamktd
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hishamktd/cinifob

package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hishamktd/cinifob/internal/logging"
	"github.com/hishamktd/cinifob/internal/metrics"
	"github.com/hishamktd/cinifob/internal/models"
)

const detailKeyPrefix = "movie_detail:"

// ErrMiss is returned by DetailStore.Get when no live entry exists.
var ErrMiss = errors.New("detail store miss")

// StoreConfig configures a DetailStore.
type StoreConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests and by deployments
	// without a writable volume.
	InMemory bool

	// TTL is the lifetime of every entry.
	TTL time.Duration

	// GCInterval is how often Serve runs value log GC. Defaults to 10m.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC. Defaults to 0.5.
	GCRatio float64
}

// DetailStore persists movie details in BadgerDB so warm caches survive a
// restart. Entries expire through Badger's per-entry TTL.
type DetailStore struct {
	db  *badger.DB
	cfg StoreConfig
}

// OpenDetailStore opens (or creates) the store described by cfg.
func OpenDetailStore(cfg StoreConfig) (*DetailStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("detail store path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create detail store directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(logging.NewBadgerLogger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Detail store opened")

	return &DetailStore{db: db, cfg: cfg}, nil
}

func detailKey(id int) []byte {
	return []byte(detailKeyPrefix + strconv.Itoa(id))
}

// Get returns the stored detail for id, or ErrMiss.
func (s *DetailStore) Get(ctx context.Context, id int) (*models.MovieDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var detail models.MovieDetail
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(detailKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("get detail: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &detail)
		})
	})
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.RecordCacheLookup("store", false)
		}
		return nil, err
	}

	metrics.RecordCacheLookup("store", true)
	return &detail, nil
}

// Put stores detail with the configured TTL.
func (s *DetailStore) Put(ctx context.Context, detail *models.MovieDetail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if detail == nil || detail.ID <= 0 {
		return fmt.Errorf("put detail: invalid movie")
	}

	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(detailKey(detail.ID), data).WithTTL(s.cfg.TTL)
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("set detail: %w", err)
		}
		return nil
	})
}

// Delete removes the entry for id. Deleting a missing entry is not an error.
func (s *DetailStore) Delete(ctx context.Context, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(detailKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete detail: %w", err)
		}
		return nil
	})
}

// Len counts live entries.
func (s *DetailStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(detailKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count details: %w", err)
	}
	return n, nil
}

// RunGC reclaims value log space until Badger reports nothing to rewrite.
// It is a no-op for in-memory stores.
func (s *DetailStore) RunGC() error {
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Serve runs value log GC periodically. It implements suture.Service.
func (s *DetailStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Detail store GC failed")
			}
		}
	}
}

func (s *DetailStore) String() string {
	return "detail-store-gc"
}

// Close flushes and closes the underlying database.
func (s *DetailStore) Close() error {
	return s.db.Close()
}
