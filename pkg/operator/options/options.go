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

package options

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nodescaler/nodescaler/pkg/utils/env"
)

type ScalingPolicy string

const (
	ScalingPolicyPredictive    ScalingPolicy = "predictive"
	ScalingPolicyOverloadRatio ScalingPolicy = "overload-ratio"
)

type TargetKind string

const (
	TargetKindMachineSet        TargetKind = "MachineSet"
	TargetKindMachineDeployment TargetKind = "MachineDeployment"
	TargetKindEKSNodeGroup      TargetKind = "EKSNodeGroup"
)

type TelemetrySource string

const (
	TelemetrySourcePrometheus    TelemetrySource = "prometheus"
	TelemetrySourceMetricsServer TelemetrySource = "metrics-server"
)

const (
	DefaultPrometheusURL = "https://prometheus-k8s.openshift-monitoring.svc:9091"
	DefaultCPUQuery      = `100 - (avg by (instance) (rate(node_cpu_seconds_total{mode="idle"}[2m])) * 100)`
	DefaultMemQuery      = `(1 - (node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)) * 100`

	serviceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"
)

type optionsKey struct{}

// Options contains all CLI flags / env vars for the node scaler.
type Options struct {
	// Decision
	CPUThreshold   float64
	MemThreshold   float64
	NodeUsageLimit float64
	CheckInterval  time.Duration
	MaxReplicas    int
	ScalingPolicy  string

	// Scaling target
	TargetKind      string
	TargetName      string
	TargetSelector  string
	TargetNamespace string
	ClusterName     string

	// Telemetry
	TelemetrySource     string
	PrometheusURL       string
	PrometheusTokenFile string
	PrometheusCAFile    string
	PrometheusTimeout   time.Duration
	CPUQuery            string
	MemQuery            string

	// Operator
	LivenessFile            string
	TracingEndpoint         string
	TracingSampleRatio      float64
	MetricsPort             int
	HealthProbePort         int
	KubeClientQPS           int
	KubeClientBurst         int
	DisableLeaderElection   bool
	LeaderElectionName      string
	LeaderElectionNamespace string
	MemoryLimit             int64
	LogLevel                string
	LogOutputPaths          string
	LogErrorOutputPaths     string
}

type FlagSet struct {
	*flag.FlagSet
}

// BoolVarWithEnv defines a bool flag with a specified name, default value, usage string, and fallback environment
// variable.
func (fs *FlagSet) BoolVarWithEnv(p *bool, name string, envVar string, val bool, usage string) {
	*p = env.WithDefaultBool(envVar, val)
	fs.BoolFunc(name, usage, func(val string) error {
		if val != "true" && val != "false" {
			return fmt.Errorf("%q is not a valid value, must be true or false", val)
		}
		*p = (val) == "true"
		return nil
	})
}

func (o *Options) AddFlags(fs *FlagSet) {
	fs.Float64Var(&o.CPUThreshold, "cpu-threshold", env.WithDefaultFloat64("CPU_THRESHOLD", 0.6), "CPU utilization fraction above which a node counts as busy and above which the predictive policy scales up")
	fs.Float64Var(&o.MemThreshold, "mem-threshold", env.WithDefaultFloat64("MEM_THRESHOLD", 0.6), "Memory utilization fraction above which a node counts as busy and above which the predictive policy scales up")
	fs.Float64Var(&o.NodeUsageLimit, "node-usage-limit", env.WithDefaultFloat64("NODE_USAGE_LIMIT", 0.5), "Fraction of overloaded nodes at which the overload-ratio policy scales up")
	fs.DurationVar(&o.CheckInterval, "check-interval", env.WithDefaultDuration("CHECK_INTERVAL", 60*time.Second), "Time between two evaluations. The environment variable accepts a number of seconds or a duration")
	fs.IntVar(&o.MaxReplicas, "max-replicas", env.WithDefaultInt("MAX_REPLICAS", 10), "Replica count a scaling target is never grown beyond")
	fs.StringVar(&o.ScalingPolicy, "scaling-policy", env.WithDefaultString("SCALING_POLICY", string(ScalingPolicyPredictive)), "Decision rule. Can be one of 'predictive' or 'overload-ratio'")

	fs.StringVar(&o.TargetKind, "target-kind", env.WithDefaultString("TARGET_KIND", string(TargetKindMachineSet)), "Kind of node group to scale. Can be one of 'MachineSet', 'MachineDeployment' or 'EKSNodeGroup'")
	fs.StringVar(&o.TargetName, "target-name", env.WithDefaultString("TARGET_NAME", "", "MACHINESET_NAME"), "Name of the single node group to scale. Mutually exclusive with target-selector")
	fs.StringVar(&o.TargetSelector, "target-selector", env.WithDefaultString("TARGET_SELECTOR", ""), "Label selector matching every node group to scale, e.g. 'role=worker'. Mutually exclusive with target-name")
	fs.StringVar(&o.TargetNamespace, "target-namespace", env.WithDefaultString("TARGET_NAMESPACE", "openshift-machine-api"), "Namespace of the node group resources")
	fs.StringVar(&o.ClusterName, "cluster-name", env.WithDefaultString("CLUSTER_NAME", ""), "EKS cluster owning the managed node groups. Required for the EKSNodeGroup target kind")

	fs.StringVar(&o.TelemetrySource, "telemetry-source", env.WithDefaultString("TELEMETRY_SOURCE", string(TelemetrySourcePrometheus)), "Where node utilization is read from. Can be one of 'prometheus' or 'metrics-server'")
	fs.StringVar(&o.PrometheusURL, "prometheus-url", env.WithDefaultString("PROMETHEUS_URL", DefaultPrometheusURL), "Base URL of the Prometheus query API")
	fs.StringVar(&o.PrometheusTokenFile, "prometheus-token-file", env.WithDefaultString("PROMETHEUS_TOKEN_FILE", serviceAccountDir+"/token"), "File holding the bearer token sent to Prometheus")
	fs.StringVar(&o.PrometheusCAFile, "prometheus-ca-file", env.WithDefaultString("PROMETHEUS_CA_FILE", serviceAccountDir+"/ca.crt"), "CA bundle used to verify the Prometheus certificate")
	fs.DurationVar(&o.PrometheusTimeout, "prometheus-timeout", env.WithDefaultDuration("PROMETHEUS_TIMEOUT", 10*time.Second), "Upper bound for a single Prometheus query")
	fs.StringVar(&o.CPUQuery, "cpu-query", env.WithDefaultString("CPU_QUERY", DefaultCPUQuery), "PromQL returning busy CPU percent per instance")
	fs.StringVar(&o.MemQuery, "mem-query", env.WithDefaultString("MEM_QUERY", DefaultMemQuery), "PromQL returning used memory percent per instance")

	fs.StringVar(&o.LivenessFile, "liveness-file", env.WithDefaultString("LIVENESS_FILE", "/tmp/healthy"), "Marker file written once the controller has started")
	fs.StringVar(&o.TracingEndpoint, "tracing-endpoint", env.WithDefaultString("TRACING_ENDPOINT", ""), "OTLP gRPC collector endpoint. Tracing is disabled when empty")
	fs.Float64Var(&o.TracingSampleRatio, "tracing-sample-ratio", env.WithDefaultFloat64("TRACING_SAMPLE_RATIO", 1.0), "Fraction of ticks that are traced")
	fs.IntVar(&o.MetricsPort, "metrics-port", env.WithDefaultInt("METRICS_PORT", 8080), "The port the metric endpoint binds to for operating metrics about the controller itself")
	fs.IntVar(&o.HealthProbePort, "health-probe-port", env.WithDefaultInt("HEALTH_PROBE_PORT", 8081), "The port the health probe endpoint binds to for reporting controller health")
	fs.IntVar(&o.KubeClientQPS, "kube-client-qps", env.WithDefaultInt("KUBE_CLIENT_QPS", 200), "The smoothed rate of qps to kube-apiserver")
	fs.IntVar(&o.KubeClientBurst, "kube-client-burst", env.WithDefaultInt("KUBE_CLIENT_BURST", 300), "The maximum allowed burst of queries to the kube-apiserver")
	fs.BoolVarWithEnv(&o.DisableLeaderElection, "disable-leader-election", "DISABLE_LEADER_ELECTION", true, "Disable the leader election client before executing the main loop. Only one replica may run against a scaling target while it is disabled.")
	fs.StringVar(&o.LeaderElectionName, "leader-election-name", env.WithDefaultString("LEADER_ELECTION_NAME", "nodescaler-leader-election"), "Leader election name to create and monitor the lease")
	fs.StringVar(&o.LeaderElectionNamespace, "leader-election-namespace", env.WithDefaultString("LEADER_ELECTION_NAMESPACE", ""), "Leader election namespace to create and monitor the lease if running outside the cluster")
	fs.Int64Var(&o.MemoryLimit, "memory-limit", env.WithDefaultInt64("MEMORY_LIMIT", -1), "Memory limit on the container running the controller. The GC soft memory limit is set to 90% of this value.")
	fs.StringVar(&o.LogLevel, "log-level", env.WithDefaultString("LOG_LEVEL", "info"), "Log verbosity level. Can be one of 'debug', 'info', or 'error'")
	fs.StringVar(&o.LogOutputPaths, "log-output-paths", env.WithDefaultString("LOG_OUTPUT_PATHS", "stdout"), "Optional comma separated paths for directing log output")
	fs.StringVar(&o.LogErrorOutputPaths, "log-error-output-paths", env.WithDefaultString("LOG_ERROR_OUTPUT_PATHS", "stderr"), "Optional comma separated paths for logging error output")
}

func (o *Options) Parse(fs *FlagSet, args ...string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return fmt.Errorf("parsing flags, %w", err)
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validating options, %w", err)
	}
	return nil
}

func (o *Options) ToContext(ctx context.Context) context.Context {
	return ToContext(ctx, o)
}

func (o *Options) GetScalingPolicy() ScalingPolicy { return ScalingPolicy(o.ScalingPolicy) }

func (o *Options) GetTargetKind() TargetKind { return TargetKind(o.TargetKind) }

func (o *Options) GetTelemetrySource() TelemetrySource { return TelemetrySource(o.TelemetrySource) }

func ToContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

func FromContext(ctx context.Context) *Options {
	retval := ctx.Value(optionsKey{})
	if retval == nil {
		// This is a developer error if this happens, so we should panic
		panic("options doesn't exist in context")
	}
	return retval.(*Options)
}
