// Copyright 2025 HaulFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the upload coordinator over HTTP with JSON
// responses.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/HaulWorks/haulfs/pkg/coordinator"
	"github.com/HaulWorks/haulfs/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Server routes upload API requests to the coordinator.
type Server struct {
	svc     coordinator.Service
	handler http.Handler

	metricsRequest         *prometheus.CounterVec
	metricsRequestDuration *prometheus.HistogramVec
}

// Config holds configuration for creating a Server
type Config struct {
	Service coordinator.Service

	// AccessToken enables bearer-token auth when non-empty.
	AccessToken string

	// RateLimit caps requests per second across all clients; zero
	// disables limiting. RateBurst defaults to the ceiling of RateLimit.
	RateLimit float64
	RateBurst int

	// Registry receives the request metrics. Defaults to the shared
	// debug registry.
	Registry prometheus.Registerer
}

// NewServer creates a new API server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("Service is required")
	}

	registry := cfg.Registry
	if registry == nil {
		registry = debug.Registry()
	}

	s := &Server{
		svc: cfg.Service,
		metricsRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "haulfs_api_requests_total",
			Help: "Number of API requests by route and status code.",
		}, []string{"route", "code"}),
		metricsRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "haulfs_api_request_duration_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if err := registry.Register(s.metricsRequest); err != nil {
		return nil, err
	}
	if err := registry.Register(s.metricsRequestDuration); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("POST /upload/{objectId}", s.instrument("upload", http.HandlerFunc(s.handleUpload)))
	mux.Handle("POST /upload/{objectId}/parts", s.instrument("parts", http.HandlerFunc(s.handleFinalizePart)))
	mux.Handle("GET /upload/{objectId}/parts", s.instrument("presign", http.HandlerFunc(s.handlePresignPart)))
	mux.Handle("GET /upload/{objectId}/status", s.instrument("status", http.HandlerFunc(s.handleStatus)))
	mux.Handle("DELETE /upload/{objectId}", s.instrument("abort", http.HandlerFunc(s.handleAbort)))

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = int(cfg.RateLimit) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.handler = withRequestID(withAccessLog(withRateLimit(limiter, withAuth(cfg.AccessToken, mux))))
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := w.(*wrappedResponseRecorder)
		if !ok {
			rec = &wrappedResponseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.metricsRequest.WithLabelValues(route, strconv.Itoa(rec.statusCode)).Inc()
		s.metricsRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
