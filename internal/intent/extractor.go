package intent

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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/aleutian-labs/toolscout/internal/pipelineerr"
	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

var extractorTracer = otel.Tracer("toolscout.intent")

var (
	extractionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "toolscout",
		Subsystem: "intent",
		Name:      "extraction_total",
		Help:      "Intent extraction attempts by outcome.",
	}, []string{"outcome"})

	extractionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "toolscout",
		Subsystem: "intent",
		Name:      "extraction_latency_seconds",
		Help:      "Intent extraction latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Extractor is C3's collaborator interface: query in, validated intent out.
type Extractor interface {
	Extract(ctx context.Context, query string) (*Record, error)
}

// Config tunes an LLMExtractor.
type Config struct {
	Model         string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	MinConfidence float64
}

// DefaultConfig matches the teacher's ParamExtractor defaults in spirit:
// deterministic (temperature 0), a bounded timeout, and a floor that
// rejects genuinely unreliable extractions rather than passing them on.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		Temperature:   0,
		MaxTokens:     1024,
		MinConfidence: 0.3,
	}
}

// LLMExtractor implements Extractor by calling a ChatClient and validating
// the result against the domain schema's vocabularies.
type LLMExtractor struct {
	chat    providers.ChatClient
	builder *prompt.Builder
	schema  *schema.DomainSchema
	cfg     Config
	logger  *slog.Logger
}

func NewLLMExtractor(chat providers.ChatClient, builder *prompt.Builder, s *schema.DomainSchema, cfg Config, logger *slog.Logger) (*LLMExtractor, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat client must not be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("prompt builder must not be nil")
	}
	if s == nil {
		return nil, fmt.Errorf("domain schema must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{chat: chat, builder: builder, schema: s, cfg: cfg, logger: logger}, nil
}

func (e *LLMExtractor) Extract(ctx context.Context, query string) (*Record, error) {
	ctx, span := extractorTracer.Start(ctx, "intent.Extract")
	defer span.End()
	span.SetAttributes(attribute.String("query.preview", truncate(query, 120)))

	start := time.Now()
	defer func() { extractionLatency.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	systemPrompt, err := e.builder.BuildIntentSystemPrompt()
	if err != nil {
		extractionTotal.WithLabelValues("prompt_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "prompt build failed")
		return nil, pipelineerr.New("intent-extractor", pipelineerr.KindExtractionFailed, err.Error(), false)
	}

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: e.builder.BuildUserPrompt(query)},
	}

	raw, err := e.chat.Chat(ctx, messages, providers.ChatOptions{
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		Model:       e.cfg.Model,
	})
	if err != nil {
		extractionTotal.WithLabelValues("chat_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat call failed")
		e.logger.Warn("intent extraction: chat call failed", slog.String("error", err.Error()))
		return nil, pipelineerr.New("intent-extractor", pipelineerr.KindExtractionFailed, err.Error(), false)
	}

	var rec Record
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &rec); err != nil {
		extractionTotal.WithLabelValues("parse_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		e.logger.Warn("intent extraction: unparseable response", slog.String("raw", truncate(raw, 200)))
		return nil, pipelineerr.New("intent-extractor", pipelineerr.KindExtractionFailed, "model produced no parsable intent", false)
	}

	if err := e.validate(&rec); err != nil {
		extractionTotal.WithLabelValues(err.Kind).Inc()
		span.RecordError(fmt.Errorf("%s", err.Message))
		span.SetStatus(codes.Error, err.Message)
		return nil, err.pipelineErr()
	}

	extractionTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Float64("intent.confidence", rec.Confidence))
	return &rec, nil
}

type validationFailure struct {
	Kind    string
	Message string
}

func (v *validationFailure) pipelineErr() *pipelineerr.Error {
	kind := pipelineerr.KindExtractionFailed
	if v.Kind == "vocabulary_mismatch" {
		kind = pipelineerr.KindVocabularyMismatch
	}
	if v.Kind == "low_confidence" {
		kind = pipelineerr.KindLowConfidence
	}
	return pipelineerr.New("intent-extractor", kind, v.Message, false)
}

// validate runs the intent validity check from SPEC_FULL.md §4.3: every
// vocabulary-bound field is an exact member, confidence is in bounds and
// above the configured floor, and price values are sanitized.
func (e *LLMExtractor) validate(r *Record) *validationFailure {
	if r.PrimaryGoal == "" {
		return &validationFailure{"extraction_failed", "primaryGoal is required"}
	}

	checks := []struct {
		axis  string
		value string
	}{
		{"categories", r.Category},
		{"interface", r.Interface},
		{"functionality", r.Functionality},
		{"deployment", r.Deployment},
		{"industries", r.Industry},
		{"userTypes", r.UserType},
		{"pricingModels", r.PricingModel},
		{"billingPeriods", r.BillingPeriod},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		if !e.schema.InVocabulary(c.axis, c.value) {
			return &validationFailure{"vocabulary_mismatch", fmt.Sprintf("field %q value %q is not in vocabulary %q", c.axis, c.value, c.axis)}
		}
	}
	for _, v := range r.Categories {
		if !e.schema.InVocabulary("categories", v) {
			return &validationFailure{"vocabulary_mismatch", fmt.Sprintf("field %q value %q is not in vocabulary %q", "categories", v, "categories")}
		}
	}

	if r.Confidence < 0 || r.Confidence > 1 {
		return &validationFailure{"extraction_failed", fmt.Sprintf("confidence %v out of [0,1]", r.Confidence)}
	}
	if r.Confidence < e.cfg.MinConfidence {
		return &validationFailure{"low_confidence", fmt.Sprintf("confidence %.2f below floor %.2f", r.Confidence, e.cfg.MinConfidence)}
	}

	if r.PriceComparison != nil {
		if r.PriceComparison.Value < 0 {
			r.PriceComparison.Value = 0
		}
	}

	return nil
}

// extractJSONObject strips markdown code fences and surrounding prose,
// isolating the {...} object boundaries, the same defensive parse the
// teacher's ParamExtractor applies to LLM chat output.
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
