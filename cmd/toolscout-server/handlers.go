// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aleutian-labs/toolscout/internal/cache"
	"github.com/aleutian-labs/toolscout/internal/candidate"
	"github.com/aleutian-labs/toolscout/internal/pipeline"
)

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SearchRequest is the POST /v1/search request body.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
}

// SearchResponse is the POST /v1/search response body.
type SearchResponse struct {
	Candidates []candidate.Candidate `json:"candidates"`
	Strategy   string                `json:"strategy,omitempty"`
	Confidence float64               `json:"confidence,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
}

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

func registerSearchRoute(rg *gin.RouterGroup, live *atomic.Pointer[livePipeline], cacheStore *cache.Store) {
	rg.POST("/search", handleSearch(live, cacheStore))
}

// handleSearch handles POST /v1/search. It loads the live pipeline on every
// request rather than closing over a fixed one, so a schema hot-reload (see
// schema.WatchFile in main.go) takes effect for the very next request with no
// restart and no in-flight request ever sees a half-swapped pipeline.
//
// Response:
//
//	200 OK: SearchResponse, possibly with zero candidates.
//	400 Bad Request: missing query.
//	502 Bad Gateway: extraction or planning failed structurally.
func handleSearch(live *atomic.Pointer[livePipeline], cacheStore *cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := getOrCreateRequestID(c)
		logger := slog.With(slog.String("request_id", requestID), slog.String("handler", "handleSearch"))

		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required", Code: "MISSING_QUERY"})
			return
		}

		current := live.Load()

		if cacheStore != nil {
			var cached SearchResponse
			if ok, err := cacheStore.Get(c.Request.Context(), cache.Key(current.schemaVersion, req.Query), &cached); err == nil && ok {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		resp, err := current.pl.Search(c.Request.Context(), req.Query, pipeline.Options{})
		if err != nil {
			logger.Warn("search failed", slog.String("error", err.Error()))
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "SEARCH_FAILED"})
			return
		}

		out := SearchResponse{Candidates: resp.Candidates}
		if resp.Stats.Plan != nil {
			out.Strategy = string(resp.Stats.Plan.Strategy)
			out.Confidence = resp.Stats.Plan.Confidence
		}
		for _, e := range resp.Errors {
			out.Warnings = append(out.Warnings, e.Error())
		}

		if cacheStore != nil {
			if err := cacheStore.Set(c.Request.Context(), cache.Key(current.schemaVersion, req.Query), out); err != nil {
				logger.Warn("cache set failed", slog.String("error", err.Error()))
			}
		}

		c.JSON(http.StatusOK, out)
	}
}

// corsMiddleware enforces the operator-configured CORS origin allowlist,
// rejecting any Origin header not present in allowed (empty allowed means
// no cross-origin requests are permitted, not "allow all").
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedSet[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowedSet[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
