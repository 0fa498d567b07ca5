// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/wrench/core"
	"github.com/poiesic/wrench/ingestion"
	"github.com/poiesic/wrench/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for HTTP traffic, retrieval and
// ingestion. It implements search.Monitor.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	retrievalTotal    *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalContexts prometheus.Histogram

	ingestDocuments *prometheus.CounterVec
	ingestRecords   *prometheus.CounterVec
	ingestFailures  *prometheus.CounterVec

	registry *prometheus.Registry
}

var _ search.Monitor = (*Metrics)(nil)

// NewMetrics creates collectors under namespace on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wrench"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.retrievalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Retrieval attempts by outcome",
		},
		[]string{"outcome"},
	)
	m.retrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent embedding the query and searching the index",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, .75, 1, 1.2, 2},
		},
	)
	m.retrievalContexts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_contexts",
			Help:      "Contexts returned per successful retrieval",
			Buckets:   prometheus.LinearBuckets(0, 1, core.MaxTopK+1),
		},
	)

	m.ingestDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_documents_total",
			Help:      "Documents ingested by source",
		},
		[]string{"source"},
	)
	m.ingestRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Index records upserted by source",
		},
		[]string{"source"},
	)
	m.ingestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Failed ingest calls by source",
		},
		[]string{"source"},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.retrievalTotal,
		m.retrievalDuration,
		m.retrievalContexts,
		m.ingestDocuments,
		m.ingestRecords,
		m.ingestFailures,
	)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Middleware records request counts and latencies.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		m.requestsTotal.WithLabelValues(c.Request.Method, path, statusClass(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return gin.WrapH(h)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RetrievalHit implements search.Monitor.
func (m *Metrics) RetrievalHit(contexts int, elapsed time.Duration) {
	m.retrievalTotal.WithLabelValues("hit").Inc()
	m.retrievalDuration.Observe(elapsed.Seconds())
	m.retrievalContexts.Observe(float64(contexts))
}

// RetrievalTimeout implements search.Monitor.
func (m *Metrics) RetrievalTimeout(elapsed time.Duration) {
	m.retrievalTotal.WithLabelValues("timeout").Inc()
	m.retrievalDuration.Observe(elapsed.Seconds())
}

// RetrievalError implements search.Monitor.
func (m *Metrics) RetrievalError(_ error, elapsed time.Duration) {
	m.retrievalTotal.WithLabelValues("error").Inc()
	m.retrievalDuration.Observe(elapsed.Seconds())
}

// InstrumentIngester wraps next so every call is counted by source.
func (m *Metrics) InstrumentIngester(next Ingester) Ingester {
	return &instrumentedIngester{next: next, metrics: m}
}

type instrumentedIngester struct {
	next    Ingester
	metrics *Metrics
}

func (i *instrumentedIngester) Ingest(ctx context.Context, docs []*core.Document, opts *ingestion.IngestOptions) (*ingestion.Result, error) {
	source := ""
	if opts != nil {
		source = opts.Source
	}
	res, err := i.next.Ingest(ctx, docs, opts)
	if err != nil {
		i.metrics.ingestFailures.WithLabelValues(source).Inc()
		return nil, err
	}
	i.metrics.ingestDocuments.WithLabelValues(source).Add(float64(res.Documents))
	i.metrics.ingestRecords.WithLabelValues(source).Add(float64(res.Records))
	return res, nil
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return strconv.Itoa(status)
	}
	return strconv.Itoa(status/100) + "xx"
}
