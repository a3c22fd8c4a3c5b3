// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline is the composition root: it wires the Intent Extractor
// (C3), the Query Planner (C5, which internally runs the Plan Validator
// C6), and the Executor (C7) behind a single Search operation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aleutian-labs/toolscout/internal/candidate"
	"github.com/aleutian-labs/toolscout/internal/executor"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/pipelineerr"
	"github.com/aleutian-labs/toolscout/internal/plan"
)

var tracer = otel.Tracer("toolscout/pipeline")

var (
	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolscout", Subsystem: "pipeline", Name: "search_total", Help: "End-to-end search requests by outcome.",
	}, []string{"outcome"})
	searchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "toolscout", Subsystem: "pipeline", Name: "search_latency_seconds", Help: "End-to-end search latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Options tunes a single Search call.
type Options struct {
	// Deadline bounds the entire request (intent extraction + planning +
	// execution). Zero means the configured default is used.
	Deadline time.Duration
}

// DefaultDeadline matches SPEC_FULL.md §6's DEADLINE_MS default (15s),
// generous enough to cover a cold LLM call plus fan-out.
const DefaultDeadline = 15 * time.Second

// Stats reports what each stage produced, for callers that want visibility
// beyond the final candidate list (e.g. an HTTP handler's debug response).
type Stats struct {
	Intent   *intent.Record
	Plan     *plan.QueryPlan
	Warnings []string
}

// Response is Search's full output.
type Response struct {
	Candidates []candidate.Candidate
	Stats      Stats
	Errors     []*pipelineerr.Error
}

// OutcomeRecorder is the subset of telemetry.InfluxSink's behavior Search
// needs. Accepting it as an interface keeps this package decoupled from the
// telemetry package's InfluxDB client.
type OutcomeRecorder interface {
	RecordQueryOutcome(ctx context.Context, fusionMethod string, candidateCount int, latency time.Duration)
}

// Pipeline composes the three core stages into the single Search operation
// SPEC_FULL.md §6 names.
//
// Thread Safety: safe for concurrent use; Search holds no mutable state.
type Pipeline struct {
	extractor intent.Extractor
	planner   *plan.Planner
	executor  *executor.Executor
	logger    *slog.Logger
	influx    OutcomeRecorder
}

func New(ex intent.Extractor, pl *plan.Planner, exec *executor.Executor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{extractor: ex, planner: pl, executor: exec, logger: logger}
}

// WithOutcomeRecorder attaches an optional InfluxDB (or other) sink that
// Search reports each completed request's fusion method, candidate count,
// and latency to, alongside the Prometheus counters it always records. Nil
// disables it, which is also the zero-value default.
func (p *Pipeline) WithOutcomeRecorder(r OutcomeRecorder) *Pipeline {
	p.influx = r
	return p
}

// Search runs intent extraction, query planning, and execution in sequence,
// returning whatever candidates were produced plus every recoverable error
// encountered along the way. A hard failure in extraction or planning
// short-circuits with no candidates; a partial failure in execution still
// returns whatever candidates the surviving sources produced.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Search")
	defer span.End()
	span.SetAttributes(attribute.String("query.preview", truncate(query, 120)))

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	defer func() { searchLatency.Observe(time.Since(start).Seconds()) }()

	rec, err := p.extractor.Extract(ctx, query)
	if err != nil {
		searchTotal.WithLabelValues("extraction_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "intent extraction failed")
		return nil, fmt.Errorf("extracting intent: %w", err)
	}

	qp, err := p.planner.Plan(ctx, query, rec)
	if err != nil {
		searchTotal.WithLabelValues("planning_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "query planning failed")
		return nil, fmt.Errorf("planning query: %w", err)
	}

	res, err := p.executor.Run(ctx, query, rec, qp)
	if err != nil {
		searchTotal.WithLabelValues("execution_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		return nil, fmt.Errorf("executing plan: %w", err)
	}

	outcome := "success"
	if len(res.Candidates) == 0 {
		outcome = "empty_result"
	} else if len(res.Errors) > 0 {
		outcome = "partial"
	}
	searchTotal.WithLabelValues(outcome).Inc()

	if p.influx != nil {
		fusionMethod := ""
		if qp != nil {
			fusionMethod = string(qp.Fusion)
		}
		p.influx.RecordQueryOutcome(ctx, fusionMethod, len(res.Candidates), time.Since(start))
	}

	span.SetAttributes(
		attribute.Int("result.candidate_count", len(res.Candidates)),
		attribute.Int("result.error_count", len(res.Errors)),
	)

	return &Response{
		Candidates: res.Candidates,
		Stats: Stats{
			Intent: rec,
			Plan:   qp,
		},
		Errors: res.Errors,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
