/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics collects prometheus metrics of the issue-credential exchanges.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperledger/aries-issuecredential-go/pkg/didcomm/protocol/issuecredential"
)

const (
	namespace = "aries"

	// Issue credential.
	issueCredential      = "issuecredential"
	transitionsMetric    = "transitions_total"
	transitionTimeMetric = "transition_commit_time"
	failedCommitsMetric  = "failed_commits_total"
	abandonedMetric      = "abandoned_total"

	agentLabel = "agent"
	roleLabel  = "role"
	fromLabel  = "from"
	toLabel    = "to"
	codeLabel  = "code"

	abandonedState = "abandoned"
	unknownCode    = "unknown"
)

// Metrics manages the metrics of the issue-credential exchanges.
type Metrics struct {
	registry *prometheus.Registry

	transitions    *prometheus.CounterVec
	transitionTime *prometheus.HistogramVec
	failedCommits  *prometheus.CounterVec
	abandoned      *prometheus.CounterVec
}

// New returns the metrics registered on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: newCounterVec(
			issueCredential, transitionsMetric,
			"The number of committed state transitions of exchange records",
			agentLabel, roleLabel, fromLabel, toLabel,
		),
		transitionTime: newHistogramVec(
			issueCredential, transitionTimeMetric,
			"The time (in seconds) that it takes to persist a state transition",
			roleLabel, toLabel,
		),
		failedCommits: newCounterVec(
			issueCredential, failedCommitsMetric,
			"The number of transitions that were vetoed or could not be persisted",
			agentLabel, roleLabel, toLabel,
		),
		abandoned: newCounterVec(
			issueCredential, abandonedMetric,
			"The number of abandoned exchanges by problem code",
			agentLabel, roleLabel, codeLabel,
		),
	}

	m.registry.MustRegister(m.transitions, m.transitionTime, m.failedCommits, m.abandoned)

	return m
}

// Registry returns the prometheus registry of the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns the state machine middleware recording every transition.
func (m *Metrics) Middleware() issuecredential.Middleware {
	return func(next issuecredential.Handler) issuecredential.Handler {
		return issuecredential.HandlerFunc(func(ctx context.Context, md issuecredential.MetaData) error {
			rec := md.Record()
			role := string(rec.Role)
			start := time.Now()

			err := next.Handle(ctx, md)
			if err != nil {
				m.failedCommits.WithLabelValues(md.Agent(), role, md.StateName()).Inc()

				return err
			}

			m.transitionTime.WithLabelValues(role, md.StateName()).Observe(time.Since(start).Seconds())
			m.transitions.WithLabelValues(md.Agent(), role, md.PreviousStateName(), md.StateName()).Inc()

			if md.StateName() == abandonedState && md.PreviousStateName() != abandonedState {
				m.abandoned.WithLabelValues(md.Agent(), role, codeOf(rec.ErrorReason)).Inc()
			}

			return nil
		})
	}
}

func codeOf(errorReason string) string {
	code := strings.TrimSpace(strings.SplitN(errorReason, ":", 2)[0])
	if code == "" {
		return unknownCode
	}

	return code
}

func newCounterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func newHistogramVec(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}
