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

package test

import (
	"fmt"
	"time"

	"github.com/imdario/mergo"
	"github.com/samber/lo"

	"github.com/nodescaler/nodescaler/pkg/operator/options"
)

type OptionsFields struct {
	CPUThreshold        *float64
	MemThreshold        *float64
	NodeUsageLimit      *float64
	CheckInterval       *time.Duration
	MaxReplicas         *int
	ScalingPolicy       *string
	TargetKind          *string
	TargetName          *string
	TargetSelector      *string
	TargetNamespace     *string
	ClusterName         *string
	TelemetrySource     *string
	PrometheusURL       *string
	PrometheusTokenFile *string
	PrometheusCAFile    *string
	PrometheusTimeout   *time.Duration
	CPUQuery            *string
	MemQuery            *string
	LivenessFile        *string
	TracingEndpoint     *string
	LogLevel            *string
}

func Options(overrides ...OptionsFields) *options.Options {
	opts := OptionsFields{}
	for _, override := range overrides {
		if err := mergo.Merge(&opts, override, mergo.WithOverride); err != nil {
			panic(fmt.Sprintf("Failed to merge settings: %s", err))
		}
	}
	return &options.Options{
		CPUThreshold:          lo.FromPtrOr(opts.CPUThreshold, 0.6),
		MemThreshold:          lo.FromPtrOr(opts.MemThreshold, 0.6),
		NodeUsageLimit:        lo.FromPtrOr(opts.NodeUsageLimit, 0.5),
		CheckInterval:         lo.FromPtrOr(opts.CheckInterval, time.Minute),
		MaxReplicas:           lo.FromPtrOr(opts.MaxReplicas, 10),
		ScalingPolicy:         lo.FromPtrOr(opts.ScalingPolicy, string(options.ScalingPolicyPredictive)),
		TargetKind:            lo.FromPtrOr(opts.TargetKind, string(options.TargetKindMachineSet)),
		TargetName:            lo.FromPtrOr(opts.TargetName, "test-worker"),
		TargetSelector:        lo.FromPtrOr(opts.TargetSelector, ""),
		TargetNamespace:       lo.FromPtrOr(opts.TargetNamespace, "openshift-machine-api"),
		ClusterName:           lo.FromPtrOr(opts.ClusterName, "test-cluster"),
		TelemetrySource:       lo.FromPtrOr(opts.TelemetrySource, string(options.TelemetrySourcePrometheus)),
		PrometheusURL:         lo.FromPtrOr(opts.PrometheusURL, "https://prometheus.test:9091"),
		PrometheusTokenFile:   lo.FromPtrOr(opts.PrometheusTokenFile, ""),
		PrometheusCAFile:      lo.FromPtrOr(opts.PrometheusCAFile, ""),
		PrometheusTimeout:     lo.FromPtrOr(opts.PrometheusTimeout, 10*time.Second),
		CPUQuery:              lo.FromPtrOr(opts.CPUQuery, options.DefaultCPUQuery),
		MemQuery:              lo.FromPtrOr(opts.MemQuery, options.DefaultMemQuery),
		LivenessFile:          lo.FromPtrOr(opts.LivenessFile, "/tmp/healthy"),
		TracingEndpoint:       lo.FromPtrOr(opts.TracingEndpoint, ""),
		TracingSampleRatio:    1.0,
		MetricsPort:           8080,
		HealthProbePort:       8081,
		KubeClientQPS:         200,
		KubeClientBurst:       300,
		DisableLeaderElection: true,
		LeaderElectionName:    "nodescaler-leader-election",
		MemoryLimit:           -1,
		LogLevel:              lo.FromPtrOr(opts.LogLevel, "debug"),
		LogOutputPaths:        "stdout",
		LogErrorOutputPaths:   "stderr",
	}
}
