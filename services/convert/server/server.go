// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server embeds the converter behind an HTTP API. The service is
// stateless: the catalog loaded at startup is the only shared state, and
// it is immutable, so every request can convert independently.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/config"
	"github.com/foxlate/foxlate/services/convert/manifest"
	"github.com/foxlate/foxlate/services/convert/pipeline"
)

// Handlers serves the conversion endpoints.
//
// Thread Safety: Safe for concurrent use; both fields are immutable.
type Handlers struct {
	cat   *catalog.Catalog
	prefs config.Preferences
}

// NewHandlers creates the handler set.
func NewHandlers(cat *catalog.Catalog, prefs config.Preferences) *Handlers {
	return &Handlers{cat: cat, prefs: prefs}
}

// New builds a ready-to-run engine with all routes registered.
func New(cat *catalog.Catalog, prefs config.Preferences) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	RegisterRoutes(r, NewHandlers(cat, prefs))
	return r
}

// RegisterRoutes registers the conversion API.
//
// Endpoints:
//
//	POST /v1/analyze - Report findings without converting
//	POST /v1/convert - Run a full conversion
//	GET  /healthz    - Health check
//	GET  /metrics    - Prometheus metrics
func RegisterRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/healthz", h.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/analyze", h.HandleAnalyze)
		v1.POST("/convert", h.HandleConvert)
	}
}

// conversionRequest is the shared body of both endpoints: the extension's
// text files plus its raw manifest.
type conversionRequest struct {
	Files    map[string]string `json:"files"`
	Manifest json.RawMessage   `json:"manifest" binding:"required"`
}

func (req *conversionRequest) byteFiles() map[string][]byte {
	out := make(map[string][]byte, len(req.Files))
	for p, s := range req.Files {
		out[p] = []byte(s)
	}
	return out
}

func (h *Handlers) options() pipeline.Options {
	return pipeline.Options{
		Workers:          h.prefs.MaxWorkers,
		CreatePolyfill:   h.prefs.CreatePolyfills,
		PreferWorkers:    h.prefs.PreferWorkers,
		MaxFileSizeBytes: h.prefs.MaxFileSizeBytes,
		StrictMinVersion: h.prefs.StrictMinVersion,
	}
}

// HandleHealth reports liveness and the catalog revision.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"catalog": h.cat.Version(),
	})
}

// HandleAnalyze scans the submitted extension and returns its findings.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := manifest.Parse(req.Manifest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := pipeline.Analyze(c.Request.Context(), req.byteFiles(), doc, h.cat, h.options())
	if err != nil {
		analysesTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	analysesTotal.WithLabelValues("ok").Inc()

	c.JSON(http.StatusOK, gin.H{
		"findings":        a.Findings,
		"files_scanned":   a.FilesScanned,
		"catalog_version": a.CatalogVersion,
	})
}

// HandleConvert runs a full conversion and returns the result.
func (h *Handlers) HandleConvert(c *gin.Context) {
	var req conversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := manifest.Parse(req.Manifest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	res, err := pipeline.Convert(c.Request.Context(), req.byteFiles(), doc, h.cat, h.options())
	if err != nil {
		conversionsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conversionsTotal.WithLabelValues("ok").Inc()
	conversionDuration.Observe(time.Since(start).Seconds())
	findingsEmitted.Add(float64(len(res.Findings)))

	manifestBytes, err := res.Manifest.Marshal()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outFiles := make(map[string]string, len(res.Files))
	for p, b := range res.Files {
		outFiles[p] = string(b)
	}

	slog.Info("conversion served",
		slog.String("run_id", res.RunID),
		slog.Int("files", len(res.Files)),
		slog.Int("findings", len(res.Findings)))

	c.JSON(http.StatusOK, gin.H{
		"run_id":          res.RunID,
		"catalog_version": res.CatalogVersion,
		"files":           outFiles,
		"new_files":       res.NewFiles,
		"removed_files":   res.RemovedFiles,
		"manifest":        json.RawMessage(manifestBytes),
		"patches":         res.Patches,
		"findings":        res.Findings,
		"counts":          res.Counts,
		"instructions":    res.Instructions,
	})
}
