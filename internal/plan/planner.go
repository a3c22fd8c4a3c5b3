package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/pipelineerr"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

var plannerTracer = otel.Tracer("toolscout.plan")

var (
	planTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolscout", Subsystem: "plan", Name: "total", Help: "Query planning attempts by outcome.",
	}, []string{"outcome"})
	planLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "toolscout", Subsystem: "plan", Name: "latency_seconds", Help: "Query planning latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// stageState names the Init→Analyze→Prompt→PostValidate→Emit state machine
// SPEC_FULL.md §4.5 describes; it runs straight through, no loops.
type stageState int

const (
	stageInit stageState = iota
	stageAnalyze
	stagePrompt
	stagePostValidate
	stageEmit
)

// Planner implements C5.
type Planner struct {
	chat    providers.ChatClient
	builder *prompt.Builder
	schema  *schema.DomainSchema
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewPlanner(chat providers.ChatClient, builder *prompt.Builder, s *schema.DomainSchema, model string, timeout time.Duration, logger *slog.Logger) *Planner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{chat: chat, builder: builder, schema: s, model: model, timeout: timeout, logger: logger}
}

// Plan runs the full state machine and returns a validated QueryPlan, or a
// plan-invalid / extraction-failed error if any stage fails structurally.
func (p *Planner) Plan(ctx context.Context, query string, rec *intent.Record) (*QueryPlan, error) {
	ctx, span := plannerTracer.Start(ctx, "plan.Plan")
	defer span.End()

	start := time.Now()
	defer func() { planLatency.Observe(time.Since(start).Seconds()) }()

	state := stageInit

	state = stageAnalyze
	analysis := Analyze(rec)

	state = stagePrompt
	raw, err := p.promptLLM(ctx, query, rec, analysis)
	if err != nil {
		planTotal.WithLabelValues("llm_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning llm call failed")
		return nil, pipelineerr.New("query-planner", pipelineerr.KindPlanInvalid, fmt.Sprintf("stage %d: %s", state, err), false)
	}

	state = stagePostValidate
	enhanced := PostValidate(p.schema, analysis, rec, raw)

	state = stageEmit
	if err := Validate(p.schema, enhanced); err != nil {
		planTotal.WithLabelValues("invalid").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan invalid")
		return nil, err
	}

	planTotal.WithLabelValues("success").Inc()
	return enhanced, nil
}

func (p *Planner) promptLLM(ctx context.Context, query string, rec *intent.Record, analysis Analysis) (*QueryPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	systemPrompt, err := p.builder.BuildPlanSystemPrompt()
	if err != nil {
		return nil, fmt.Errorf("building plan system prompt: %w", err)
	}

	intentJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling intent for planning prompt: %w", err)
	}

	userPrompt := fmt.Sprintf(
		"Query: %s\nIntent: %s\nDeterministic analysis: recommendedStrategy=%s primary=%v secondary=%v\n\nFilters you emit under structuredSources MUST be a JSON array of {field,operator,value} objects, never an object.",
		query, string(intentJSON), analysis.RecommendedStrategy, analysis.PrimaryCollections, analysis.SecondaryCollections,
	)

	raw, err := p.chat.Chat(ctx, []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, providers.ChatOptions{Temperature: 0, Model: p.model, MaxTokens: 2048})
	if err != nil {
		return nil, fmt.Errorf("planning chat call: %w", err)
	}

	var out QueryPlan
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &out); err != nil {
		p.logger.Warn("query planner: unparseable plan response", slog.String("raw", truncate(raw, 300)))
		return nil, fmt.Errorf("model produced no parsable plan: %w", err)
	}
	return &out, nil
}

func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
