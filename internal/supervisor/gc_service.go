// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package supervisor

import (
	"context"
	"time"

	"github.com/conveyor-media/conveyor/internal/store"
)

// GCService wraps the store's value-log garbage collection loop as a
// suture.Service.
type GCService struct {
	db       *store.DB
	interval time.Duration
}

// NewGCService builds the GC service.
func NewGCService(db *store.DB, interval time.Duration) *GCService {
	return &GCService{db: db, interval: interval}
}

// Serve runs GC until ctx is canceled.
func (s *GCService) Serve(ctx context.Context) error {
	s.db.RunGC(ctx, s.interval)
	return ctx.Err()
}

func (s *GCService) String() string { return "store.GC" }
