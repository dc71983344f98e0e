/*
 * Copyright 2024 The Sitewright Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics instruments the application with prometheus vectors and
// exposes the /metrics listener endpoint
package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/util/log"
)

const (
	metricNamespace   = "sitewright"
	frontendSubsystem = "frontend"
	routingSubsystem  = "routing"
	sessionSubsystem  = "session"
)

// Default histogram buckets used by sitewright
var defaultBuckets = []float64{0.05, 0.1, 0.5, 1, 5, 10, 20}

// FrontendRequestStatus is a Counter of front end requests that have been processed with their status
var FrontendRequestStatus *prometheus.CounterVec

// FrontendRequestDuration is a Histogram that tracks the time it takes to process a request
var FrontendRequestDuration *prometheus.HistogramVec

// RouteMatchStatus is a Counter of route set searches partitioned by outcome
var RouteMatchStatus *prometheus.CounterVec

// SessionEvents is a Counter of session lifecycle events
var SessionEvents *prometheus.CounterVec

// SessionsLive is a Gauge representing the number of sessions in the live directory
var SessionsLive prometheus.Gauge

// StoreOperationStatus is a Counter of operations performed against a session record store
var StoreOperationStatus *prometheus.CounterVec

var initOnce sync.Once

// Init initializes the instrumented metrics and starts the listener endpoint
func Init() {
	initOnce.Do(initMetrics)
}

func initMetrics() {

	FrontendRequestStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_total",
			Help:      "Count of front end requests handled by Sitewright",
		},
		[]string{"site", "method", "http_status"},
	)

	FrontendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Subsystem: frontendSubsystem,
			Name:      "requests_duration_seconds",
			Help:      "Histogram of front end request durations handled by Sitewright",
			Buckets:   defaultBuckets,
		},
		[]string{"site", "method", "http_status"},
	)

	RouteMatchStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: routingSubsystem,
			Name:      "match_total",
			Help:      "Count of route set searches partitioned by outcome",
		},
		[]string{"site", "outcome"},
	)

	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: sessionSubsystem,
			Name:      "events_total",
			Help:      "Count of session lifecycle events",
		},
		[]string{"event"},
	)

	SessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Subsystem: sessionSubsystem,
			Name:      "live",
			Help:      "Number of sessions currently in the live directory",
		},
	)

	StoreOperationStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Subsystem: sessionSubsystem,
			Name:      "store_operations_total",
			Help:      "Count of operations performed against a session record store",
		},
		[]string{"store", "operation", "status"},
	)

	prometheus.MustRegister(FrontendRequestStatus)
	prometheus.MustRegister(FrontendRequestDuration)
	prometheus.MustRegister(RouteMatchStatus)
	prometheus.MustRegister(SessionEvents)
	prometheus.MustRegister(SessionsLive)
	prometheus.MustRegister(StoreOperationStatus)

	if config.Metrics != nil && config.Metrics.ListenPort > 0 {
		address := fmt.Sprintf("%s:%d", config.Metrics.ListenAddress, config.Metrics.ListenPort)
		log.Info("metrics http endpoint starting", log.Pairs{"address": address, "endPoint": "/metrics"})
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(address, nil); err != nil {
				log.Error("unable to start metrics http server", log.Pairs{"detail": err.Error()})
			}
		}()
	}
}

// ObserveStoreOperation records an operation against a session record store
func ObserveStoreOperation(store, operation string, err error) {
	if StoreOperationStatus == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "err"
	}
	StoreOperationStatus.WithLabelValues(store, operation, status).Inc()
}
