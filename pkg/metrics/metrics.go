/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metrics

import (
	opmetrics "github.com/awslabs/operatorpkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	controllerSubsystem = "controller"
	telemetrySubsystem  = "telemetry"
	clusterSubsystem    = "cluster"
	scalingSubsystem    = "scaling"
)

var (
	TickDuration = opmetrics.NewPrometheusSummary(
		crmetrics.Registry,
		prometheus.SummaryOpts{
			Namespace:  Namespace,
			Subsystem:  controllerSubsystem,
			Name:       "tick_duration_seconds",
			Help:       "Duration of one evaluation of the scaling loop, labeled by how the tick ended.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{ResultLabel},
	)
	QueryDuration = opmetrics.NewPrometheusSummary(
		crmetrics.Registry,
		prometheus.SummaryOpts{
			Namespace: Namespace,
			Subsystem: telemetrySubsystem,
			Name:      "query_duration_seconds",
			Help:      "Duration of a utilization query against the telemetry source.",
		},
		[]string{SourceLabel, ResourceLabel},
	)
	QueryFailures = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: telemetrySubsystem,
			Name:      "query_failures_total",
			Help:      "Number of utilization queries that failed and were treated as no data.",
		},
		[]string{SourceLabel, ResourceLabel},
	)
	Utilization = opmetrics.NewPrometheusGauge(
		crmetrics.Registry,
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: clusterSubsystem,
			Name:      "utilization",
			Help:      "Cluster utilization fraction by resource. The kind label is either observed (mean of the last snapshot) or predicted.",
		},
		[]string{ResourceLabel, KindLabel},
	)
	OverloadedRatio = opmetrics.NewPrometheusGauge(
		crmetrics.Registry,
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: clusterSubsystem,
			Name:      "overloaded_ratio",
			Help:      "Fraction of nodes exceeding both the cpu and memory thresholds in the last snapshot.",
		},
		[]string{},
	)
	Decisions = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: scalingSubsystem,
			Name:      "decisions_total",
			Help:      "Number of policy evaluations, labeled by policy and whether it fired.",
		},
		[]string{PolicyLabel, DecisionLabel},
	)
	TargetReplicas = opmetrics.NewPrometheusGauge(
		crmetrics.Registry,
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: scalingSubsystem,
			Name:      "target_replicas",
			Help:      "Replica count of a scaling target as last read or written by the controller.",
		},
		[]string{TargetLabel},
	)
	Actuations = opmetrics.NewPrometheusCounter(
		crmetrics.Registry,
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: scalingSubsystem,
			Name:      "actuations_total",
			Help:      "Number of scale attempts on a target, labeled by outcome.",
		},
		[]string{TargetLabel, OutcomeLabel},
	)
)
