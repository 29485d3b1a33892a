// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/conveyor-media/conveyor/internal/logging"
)

// Errors returned by the stores.
var (
	// ErrRecordNotFound is returned when no media record exists for the key.
	ErrRecordNotFound = errors.New("media record not found")
	// ErrVersionConflict is returned when a conditional write carries a stale
	// version, including create-only writes against an existing record.
	ErrVersionConflict = errors.New("version conflict")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Key prefixes for BadgerDB storage.
const (
	recordKeyPrefix = "media:"
	ledgerKeyPrefix = "ledger:"
)

// DB wraps the shared Badger database with lifecycle management.
type DB struct {
	db *badger.DB
}

// Options configures the Badger database.
type Options struct {
	// Dir is the on-disk location. Empty with InMemory=true runs fully in
	// memory (tests, ephemeral deployments).
	Dir      string
	InMemory bool
	// GCInterval is how often value-log garbage collection runs.
	// Default: 10m.
	GCInterval time.Duration
}

// Open opens (or creates) the Badger database.
func Open(opts Options) (*DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(opts.Dir)
	}
	// Badger logs through its own interface; route it to zerolog.
	bopts = bopts.WithLogger(badgerLogger{})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Dir, err)
	}
	return &DB{db: db}, nil
}

// Close flushes and closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// RunGC runs value-log garbage collection until the context is canceled.
// Expired ledger entries are reclaimed here; Badger's TTL already hides them
// from reads the moment they expire.
func (d *DB) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Rerun while GC keeps finding work, as the Badger docs suggest.
			for {
				if err := d.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						logging.Warn().Err(err).Msg("Badger value log GC failed")
					}
					break
				}
			}
		}
	}
}

// badgerLogger adapts Badger's logger interface to zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}
