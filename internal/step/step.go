// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package step

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/pipeline"
)

// Nop performs no work. Useful as the terminal default and in tests.
type Nop struct{}

func (Nop) Name() string { return "nop" }

func (Nop) Execute(context.Context, *media.MediaRecord) (map[string]string, error) {
	return nil, nil
}

// Metadata derives descriptive metadata from the storage attributes already
// on the record: file extension, media class, and a coarse size bucket.
// It never fails; absent attributes just produce fewer keys.
type Metadata struct{}

func (Metadata) Name() string { return "metadata" }

func (Metadata) Execute(_ context.Context, rec *media.MediaRecord) (map[string]string, error) {
	md := make(map[string]string, 4)

	if ext := strings.TrimPrefix(path.Ext(rec.StorageKey), "."); ext != "" {
		md["extension"] = strings.ToLower(ext)
	}
	if class := mediaClass(rec.ContentType); class != "" {
		md["media_class"] = class
	}
	if rec.SizeBytes > 0 {
		md["size_bytes"] = strconv.FormatInt(rec.SizeBytes, 10)
		md["size_bucket"] = sizeBucket(rec.SizeBytes)
	}
	return md, nil
}

func mediaClass(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case contentType == "":
		return ""
	default:
		return "other"
	}
}

func sizeBucket(size int64) string {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case size < 10*mb:
		return "small"
	case size < gb:
		return "medium"
	default:
		return "large"
	}
}

// Policy bounds what media the pipeline accepts.
type Policy struct {
	// MaxSizeBytes rejects objects larger than this. Zero disables the check.
	MaxSizeBytes int64
	// AllowedTypes restricts content types; entries ending in "/" match the
	// type prefix ("video/" accepts any video). Empty allows everything.
	AllowedTypes []string
}

// Validate runs Policy against each record. Violations are terminal: the
// object in storage will not change on redelivery, so the record fails.
type Validate struct {
	policy Policy
}

// NewValidate builds a validation step for the given policy.
func NewValidate(policy Policy) *Validate {
	return &Validate{policy: policy}
}

func (*Validate) Name() string { return "validate" }

func (v *Validate) Execute(_ context.Context, rec *media.MediaRecord) (map[string]string, error) {
	if v.policy.MaxSizeBytes > 0 && rec.SizeBytes > v.policy.MaxSizeBytes {
		return nil, pipeline.NewPermanentError(
			fmt.Sprintf("object size %d exceeds limit %d", rec.SizeBytes, v.policy.MaxSizeBytes), nil)
	}
	if len(v.policy.AllowedTypes) > 0 && !v.typeAllowed(rec.ContentType) {
		return nil, pipeline.NewPermanentError(
			fmt.Sprintf("content type %q not allowed", rec.ContentType), nil)
	}
	return map[string]string{"validated": "true"}, nil
}

func (v *Validate) typeAllowed(contentType string) bool {
	for _, allowed := range v.policy.AllowedTypes {
		if strings.HasSuffix(allowed, "/") {
			if strings.HasPrefix(contentType, allowed) {
				return true
			}
		} else if contentType == allowed {
			return true
		}
	}
	return false
}

// Chain runs steps in order and merges their metadata, later steps winning
// on key collisions. The first error stops the chain.
type Chain struct {
	name  string
	steps []pipeline.Step
}

// NewChain composes steps under one name.
func NewChain(name string, steps ...pipeline.Step) *Chain {
	return &Chain{name: name, steps: steps}
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Execute(ctx context.Context, rec *media.MediaRecord) (map[string]string, error) {
	merged := make(map[string]string)
	work := rec.Clone()
	for _, s := range c.steps {
		md, err := s.Execute(ctx, work)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Name(), err)
		}
		for k, v := range md {
			merged[k] = v
			if work.Metadata == nil {
				work.Metadata = make(map[string]string)
			}
			work.Metadata[k] = v
		}
	}
	return merged, nil
}
