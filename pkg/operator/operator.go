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

package operator

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/awslabs/operatorpkg/controller"
	opmetrics "github.com/awslabs/operatorpkg/metrics"
	"github.com/awslabs/operatorpkg/serrors"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	"k8s.io/client-go/util/flowcontrol"
	"k8s.io/klog/v2"
	"k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/metrics/server"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
	"github.com/nodescaler/nodescaler/pkg/cache"
	"github.com/nodescaler/nodescaler/pkg/metrics"
	"github.com/nodescaler/nodescaler/pkg/operator/logging"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/tracing"
	"github.com/nodescaler/nodescaler/pkg/utils/env"
	"github.com/nodescaler/nodescaler/pkg/utils/filesys"
)

const (
	appName   = "nodescaler"
	component = "controller"
)

var (
	BuildInfo = opmetrics.NewPrometheusGauge(
		crmetrics.Registry,
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Name:      "build_info",
			Help:      "A metric with a constant '1' value labeled by version from which nodescaler was built.",
		},
		[]string{"version", "goversion", "goarch", "commit"},
	)
)

// Version is the nodescaler app version injected during compilation
// with -ldflags "-X github.com/nodescaler/nodescaler/pkg/operator.Version=..."
var Version = "unspecified"

func init() {
	BuildInfo.Set(1, map[string]string{
		"version":   Version,
		"goversion": runtime.Version(),
		"goarch":    runtime.GOARCH,
		"commit":    env.GetRevision(),
	})
}

type Operator struct {
	manager.Manager

	KubeClient         client.Client
	MetricsClient      versioned.Interface
	EKSAPI             sdk.EKSAPI
	Clock              clock.Clock
	UnavailableTargets *cache.UnavailableTargets
	Tracing            *tracing.Provider
}

// ParseOptions reads flags with their environment variable fallbacks and validates the result.
func ParseOptions(args ...string) (*options.Options, error) {
	opts := &options.Options{}
	fs := &options.FlagSet{FlagSet: flag.NewFlagSet(appName, flag.ContinueOnError)}
	opts.AddFlags(fs)
	if err := opts.Parse(fs, args...); err != nil {
		return nil, err
	}
	return opts, nil
}

// NewOperator instantiates a controller manager or panics
func NewOperator() (context.Context, *Operator) {
	// Root Context, cancelled on SIGTERM or SIGINT
	ctx := ctrl.SetupSignalHandler()

	// Options
	opts, err := ParseOptions(os.Args[1:]...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx = options.ToContext(ctx, opts)

	// Make the binary aware of the container memory limit
	// https://pkg.go.dev/runtime/debug#SetMemoryLimit
	if opts.MemoryLimit > 0 {
		newLimit := int64(float64(opts.MemoryLimit) * 0.9)
		debug.SetMemoryLimit(newLimit)
	}

	// Logging
	zapLogger, err := logging.NewLogger(opts, component, Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := serrors.NewLogger(zapr.NewLogger(zapLogger))
	log.SetLogger(logger)
	klog.SetLogger(logger)
	ctx = log.IntoContext(ctx, logger)

	// Client Config
	config := ctrl.GetConfigOrDie()
	config.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(float32(opts.KubeClientQPS), opts.KubeClientBurst)
	config.UserAgent = fmt.Sprintf("%s/%s", appName, Version)

	log.FromContext(ctx).WithValues("version", Version).V(1).Info("discovered nodescaler version")

	// Clients
	metricsClient := versioned.NewForConfigOrDie(config)
	var eksapi sdk.EKSAPI
	if opts.GetTargetKind() == options.TargetKindEKSNodeGroup {
		eksapi = lo.Must(NewEKSAPI(ctx))
	}

	// Tracing
	tracingProvider := lo.Must(tracing.NewProvider(ctx, Version))
	log.FromContext(ctx).WithValues("enabled", tracingProvider.Enabled()).V(1).Info("configured tracing")

	// Manager
	mgrOpts := ctrl.Options{
		Logger:                        logger,
		LeaderElection:                !opts.DisableLeaderElection,
		LeaderElectionID:              opts.LeaderElectionName,
		LeaderElectionNamespace:       opts.LeaderElectionNamespace,
		LeaderElectionResourceLock:    resourcelock.LeasesResourceLock,
		LeaderElectionReleaseOnCancel: true,
		Metrics: server.Options{
			BindAddress: fmt.Sprintf(":%d", opts.MetricsPort),
		},
		HealthProbeBindAddress: fmt.Sprintf(":%d", opts.HealthProbePort),
		BaseContext: func() context.Context {
			ctx := log.IntoContext(context.Background(), logger)
			return options.ToContext(ctx, opts)
		},
	}
	mgr, err := ctrl.NewManager(config, mgrOpts)
	mgr = lo.Must(mgr, err, "failed to setup manager")

	lo.Must0(mgr.AddHealthzCheck("healthz", healthz.Ping))
	lo.Must0(mgr.AddReadyzCheck("readyz", healthz.Ping))

	return ctx, &Operator{
		Manager:            mgr,
		KubeClient:         mgr.GetClient(),
		MetricsClient:      metricsClient,
		EKSAPI:             eksapi,
		Clock:              clock.RealClock{},
		UnavailableTargets: cache.NewUnavailableTargets(),
		Tracing:            tracingProvider,
	}
}

func (o *Operator) WithControllers(ctx context.Context, controllers ...controller.Controller) *Operator {
	for _, c := range controllers {
		lo.Must0(c.Register(ctx, o.Manager))
	}
	return o
}

// Start writes the liveness marker and runs the manager until ctx is cancelled. The manager waits for the in-flight
// tick before returning, after which pending spans are flushed.
func (o *Operator) Start(ctx context.Context) {
	lo.Must0(filesys.WriteLivenessMarker(ctx, options.FromContext(ctx).LivenessFile, o.Clock.Now()))
	lo.Must0(o.Manager.Start(ctx))
	if err := o.Tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
		log.FromContext(ctx).Error(err, "failed flushing traces")
	}
}
