// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor implements the Executor (C7): it resolves a query
// vector per vector source, fans out concurrently to every vector source
// and the structured store, normalizes scores onto a common [0,1] scale,
// fuses the per-source ranked lists per the plan's chosen fusion method,
// deduplicates by id, and truncates to the plan's total topK.
//
// Grounded on the teacher's ToolEmbeddingCache.Warm fan-out (bounded
// concurrency via errgroup.WithContext plus a semaphore, individual
// failures absorbed rather than propagated) — scaled here from an
// embed-only warm-up to a full multi-source search fan-out.
package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/aleutian-labs/toolscout/internal/candidate"
	"github.com/aleutian-labs/toolscout/internal/fusion"
	"github.com/aleutian-labs/toolscout/internal/intent"
	"github.com/aleutian-labs/toolscout/internal/pipelineerr"
	"github.com/aleutian-labs/toolscout/internal/plan"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/structuredstore"
	"github.com/aleutian-labs/toolscout/internal/vectorstore"
)

var tracer = otel.Tracer("toolscout/executor")

// Per-source soft deadlines, SPEC_FULL.md §4.7 step 2.
const (
	vectorSourceDeadline     = 5 * time.Second
	llmVectorSourceDeadline  = 10 * time.Second
	structuredSourceDeadline = 3 * time.Second
	maxCandidatesHardCap     = 200
)

// Executor fans a validated QueryPlan out to the configured vector and
// structured stores and fuses the results into a single candidate list.
//
// Thread Safety: safe for concurrent use; Run holds no mutable state.
type Executor struct {
	vectorStore     vectorstore.VectorStore
	structuredStore structuredstore.StructuredStore
	embedder        providers.Embedder
}

func New(vs vectorstore.VectorStore, ss structuredstore.StructuredStore, embedder providers.Embedder) *Executor {
	return &Executor{vectorStore: vs, structuredStore: ss, embedder: embedder}
}

// Result is the Executor's output: the fused, deduplicated, truncated
// candidate list plus any recoverable per-source errors encountered along
// the way (SPEC_FULL.md §7: partial results are accepted on per-source
// failure, never silently dropped from the error report).
type Result struct {
	Candidates []candidate.Candidate
	Errors     []*pipelineerr.Error
}

// sourceList pairs one source's ranked fusion.RankedItem list with the
// Candidate data needed to reconstruct a deduplicated result afterward.
type sourceList struct {
	items      []fusion.RankedItem
	candidates map[string]candidate.Candidate
}

// Run executes plan p against rec's resolved query vectors and returns the
// fused candidate list. ctx's deadline is the shared hard deadline; every
// per-source call additionally respects its own soft deadline, whichever
// is tighter.
func (e *Executor) Run(ctx context.Context, queryText string, rec *intent.Record, p *plan.QueryPlan) (*Result, error) {
	ctx, span := tracer.Start(ctx, "executor.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("plan.strategy", string(p.Strategy)),
		attribute.String("plan.fusion", string(p.Fusion)),
		attribute.Int("plan.vector_sources", len(p.VectorSources)),
	)

	g, gctx := errgroup.WithContext(ctx)

	vectorResults := make([]*sourceList, len(p.VectorSources))
	var structuredResult *sourceList

	var recErrs []*pipelineerr.Error
	recErrsIdx := make(chan *pipelineerr.Error, len(p.VectorSources)+1)

	for i, vs := range p.VectorSources {
		i, vs := i, vs
		g.Go(func() error {
			deadline := vectorSourceDeadline
			if vs.QueryVectorSource == plan.SourceSemanticVariant {
				deadline = llmVectorSourceDeadline
			}
			sctx, cancel := context.WithTimeout(gctx, deadline)
			defer cancel()

			list, err := e.runVectorSource(sctx, queryText, rec, vs)
			if err != nil {
				kind := pipelineerr.KindSourceUnavailable
				if sctx.Err() == context.DeadlineExceeded {
					kind = pipelineerr.KindSourceTimeout
				}
				recErrsIdx <- pipelineerr.New("executor.vector."+vs.Collection, kind, err.Error(), true)
				return nil
			}
			vectorResults[i] = list
			return nil
		})
	}

	if len(p.StructuredSources) > 0 {
		src := p.StructuredSources[0]
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, structuredSourceDeadline)
			defer cancel()

			rows, err := e.structuredStore.Query(sctx, src.Source, src.Filters, src.Limit)
			if err != nil {
				kind := pipelineerr.KindSourceUnavailable
				if sctx.Err() == context.DeadlineExceeded {
					kind = pipelineerr.KindSourceTimeout
				}
				recErrsIdx <- pipelineerr.New("executor.structured."+src.Source, kind, err.Error(), true)
				return nil
			}
			structuredResult = rowsToSourceList(src.Source, rows)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "executor fan-out failed")
		return nil, fmt.Errorf("executor fan-out: %w", err)
	}
	close(recErrsIdx)
	for perr := range recErrsIdx {
		recErrs = append(recErrs, perr)
	}

	var lists [][]fusion.RankedItem
	candidatesByID := make(map[string]candidate.Candidate)
	for _, vr := range vectorResults {
		if vr == nil {
			continue
		}
		lists = append(lists, vr.items)
		mergeCandidates(candidatesByID, vr.candidates)
	}
	if structuredResult != nil {
		lists = append(lists, structuredResult.items)
		mergeCandidates(candidatesByID, structuredResult.candidates)
	}

	if len(lists) == 0 {
		recErrs = append(recErrs, pipelineerr.New("executor", pipelineerr.KindEmptyResult, "all sources failed or returned nothing", true))
		return &Result{Errors: recErrs}, nil
	}

	weights := sourceWeights(lists)
	fused := fuse(p.Fusion, lists, weights)
	out := assembleCandidates(fused, candidatesByID, weights, p.TopKTotal())

	span.SetAttributes(attribute.Int("result.candidate_count", len(out)))
	return &Result{Candidates: out, Errors: recErrs}, nil
}

// runVectorSource resolves vs's query vector and searches it, returning a
// sourceList with scores still in the raw (pre-normalization) space; score
// normalization happens in rowsToSourceList/vectorHitsToSourceList so every
// source contributes a [0,1] value to fusion.
func (e *Executor) runVectorSource(ctx context.Context, queryText string, rec *intent.Record, vs plan.VectorSource) (*sourceList, error) {
	vec, err := e.resolveQueryVector(ctx, queryText, rec, vs)
	if err != nil {
		return nil, fmt.Errorf("resolving query vector for %q: %w", vs.Collection, err)
	}

	hits, err := e.vectorStore.Search(ctx, vs.Collection, vec, vs.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", vs.Collection, err)
	}
	return vectorHitsToSourceList(vs, hits), nil
}

// resolveQueryVector implements SPEC_FULL.md §4.7 step 1: query_text embeds
// the raw query, reference_tool_embedding looks up a stored tool vector,
// and semantic_variant embeds the first LLM-proposed rephrasing (falling
// back to query_text when the intent carries none).
func (e *Executor) resolveQueryVector(ctx context.Context, queryText string, rec *intent.Record, vs plan.VectorSource) ([]float32, error) {
	switch vs.QueryVectorSource {
	case plan.SourceReferenceToolEmbedding:
		if rec.ReferenceTool == "" {
			return nil, fmt.Errorf("reference_tool_embedding requested but intent has no referenceTool")
		}
		vec, ok, err := e.embedder.EmbeddingOfTool(ctx, rec.ReferenceTool, vs.EmbeddingField)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no stored embedding for tool %q field %q", rec.ReferenceTool, vs.EmbeddingField)
		}
		return vec, nil
	case plan.SourceSemanticVariant:
		if len(rec.SemanticVariants) == 0 {
			return e.embedder.Embed(ctx, queryText, vs.EmbeddingField)
		}
		return e.embedder.Embed(ctx, rec.SemanticVariants[0], vs.EmbeddingField)
	case plan.SourceQueryText:
		return e.embedder.Embed(ctx, queryText, vs.EmbeddingField)
	default:
		return nil, fmt.Errorf("unknown queryVectorSource %q", vs.QueryVectorSource)
	}
}

func vectorHitsToSourceList(vs plan.VectorSource, hits []vectorstore.Hit) *sourceList {
	items := make([]fusion.RankedItem, len(hits))
	cands := make(map[string]candidate.Candidate, len(hits))
	for i, h := range hits {
		items[i] = fusion.RankedItem{ID: h.ID, Score: fusion.Normalize(h.Score), Source: vs.Collection}
		cands[h.ID] = candidate.Candidate{
			ID:       h.ID,
			Score:    fusion.Normalize(h.Score),
			Source:   candidate.SourceVector,
			Metadata: h.Payload,
			Provenance: candidate.Provenance{
				Collections:       []string{vs.Collection},
				QueryVectorSource: string(vs.QueryVectorSource),
			},
			OriginalRank: i,
		}
	}
	return &sourceList{items: items, candidates: cands}
}

func rowsToSourceList(source string, rows []structuredstore.Row) *sourceList {
	items := make([]fusion.RankedItem, len(rows))
	cands := make(map[string]candidate.Candidate, len(rows))
	for i, r := range rows {
		// Structured hits carry no inherent rank-worthy score, per SPEC_FULL.md
		// §4.7 step 3: every structured-store match normalizes to a fixed 0.5.
		const structuredScore = 0.5
		items[i] = fusion.RankedItem{ID: r.ID, Score: structuredScore, Source: source}
		cands[r.ID] = candidate.Candidate{
			ID:       r.ID,
			Score:    structuredScore,
			Source:   candidate.SourceStructured,
			Metadata: r.Payload,
			Provenance: candidate.Provenance{
				FiltersApplied: []string{source},
			},
			OriginalRank: i,
		}
	}
	return &sourceList{items: items, candidates: cands}
}

func mergeCandidates(dst, src map[string]candidate.Candidate) {
	for id, c := range src {
		existing, ok := dst[id]
		if !ok {
			dst[id] = c
			continue
		}
		merged := existing
		merged.Provenance = candidate.MergeProvenance(existing.Provenance, c.Provenance)
		if c.Score > merged.Score {
			merged.Score = c.Score
		}
		dst[id] = merged
	}
}

// fuse dispatches to the C8 fusion method the plan names. Concat and None
// skip the scores map indirection entirely since they need no combining.
//
// Concat never dedupes by id itself; it relies on chooseFusion (in
// plan.PostValidate) only ever selecting it for a single-source plan, where
// no cross-list duplicate ids can occur. A QueryPlan.Fusion set to "concat"
// by some other path with more than one source would need its own dedup.
func fuse(method plan.FusionMethod, lists [][]fusion.RankedItem, weights map[string]float64) []fusion.RankedItem {
	switch method {
	case plan.FusionRRF:
		scores := fusion.RRF(lists)
		return scoresToRanked(scores, lists)
	case plan.FusionWeightedSum:
		scores := fusion.WeightedSum(lists, weights)
		return scoresToRanked(scores, lists)
	case plan.FusionConcat:
		return fusion.Concat(lists)
	case plan.FusionNone:
		if len(lists) == 0 {
			return nil
		}
		return fusion.None(lists[0])
	default:
		return fusion.Concat(lists)
	}
}

// sourceWeights assigns DefaultWeights.Primary/Secondary/Tertiary to the
// first three distinct source names encountered across lists, in list
// order, and Default to the rest — the same first-primary-then-secondary
// convention the plan's own vector-source ordering establishes.
func sourceWeights(lists [][]fusion.RankedItem) map[string]float64 {
	weights := map[string]float64{}
	tiers := []float64{fusion.DefaultWeights.Primary, fusion.DefaultWeights.Secondary, fusion.DefaultWeights.Tertiary}
	tier := 0
	for _, list := range lists {
		if len(list) == 0 {
			continue
		}
		source := list[0].Source
		if _, seen := weights[source]; seen {
			continue
		}
		if tier < len(tiers) {
			weights[source] = tiers[tier]
			tier++
		}
	}
	return weights
}

// scoresToRanked turns an id->score map back into a RankedItem slice,
// attaching each id's first-seen source for weight/tie-break purposes, and
// sorts descending by score with a deterministic tie-break on id.
func scoresToRanked(scores map[string]float64, lists [][]fusion.RankedItem) []fusion.RankedItem {
	firstSource := make(map[string]string, len(scores))
	for _, list := range lists {
		for _, item := range list {
			if _, ok := firstSource[item.ID]; !ok {
				firstSource[item.ID] = item.Source
			}
		}
	}
	out := make([]fusion.RankedItem, 0, len(scores))
	for id, score := range scores {
		out = append(out, fusion.RankedItem{ID: id, Score: score, Source: firstSource[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// assembleCandidates reconciles the fused ranked order with the richer
// Candidate records gathered during fan-out, applies the tie-break
// ordering of SPEC_FULL.md §4.7 step 7 (source weight desc, original rank
// asc, id asc), and truncates to topK. SourceWeight is the per-source
// fusion.DefaultWeights tier looked up by weights, distinct from Score (the
// final fused value) — collapsing the two would silently degrade the
// three-level tie-break to two levels for genuinely tied final scores.
func assembleCandidates(fused []fusion.RankedItem, byID map[string]candidate.Candidate, weights map[string]float64, topK int) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(fused))
	for _, item := range fused {
		c, ok := byID[item.ID]
		if !ok {
			continue
		}
		c.Score = item.Score
		w, ok := weights[item.Source]
		if !ok {
			w = fusion.DefaultWeights.Default
		}
		c.SourceWeight = w
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceWeight != out[j].SourceWeight {
			return out[i].SourceWeight > out[j].SourceWeight
		}
		if out[i].OriginalRank != out[j].OriginalRank {
			return out[i].OriginalRank < out[j].OriginalRank
		}
		return out[i].ID < out[j].ID
	})

	limit := topK
	if limit <= 0 || limit > maxCandidatesHardCap {
		limit = maxCandidatesHardCap
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
