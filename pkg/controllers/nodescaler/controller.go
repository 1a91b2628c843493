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

package nodescaler

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/awslabs/operatorpkg/reconciler"
	"github.com/awslabs/operatorpkg/singleton"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	controllerruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	"github.com/nodescaler/nodescaler/pkg/actuator"
	"github.com/nodescaler/nodescaler/pkg/metrics"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/policy"
	"github.com/nodescaler/nodescaler/pkg/prediction"
	"github.com/nodescaler/nodescaler/pkg/providers/telemetry"
	"github.com/nodescaler/nodescaler/pkg/tracing"
	"github.com/nodescaler/nodescaler/pkg/utilization"
)

const Name = "nodescaler"

// Tick results, used as the result label of the tick duration metric
const (
	TickNoData   = "no_data"
	TickNotFired = "not_fired"
	TickFired    = "fired"
	TickPanic    = "panic"
)

const (
	observedKind  = "observed"
	predictedKind = "predicted"
)

// State is everything a tick reads or mutates. The predictor windows are the only state carried between ticks.
type State struct {
	Predictor  *prediction.Predictor
	Telemetry  telemetry.Provider
	Policy     policy.Policy
	Actuator   *actuator.Actuator
	Thresholds utilization.Thresholds
}

// Controller runs the scaling loop as a singleton: one tick per reconcile, with the next tick scheduled
// CHECK_INTERVAL after the previous one returned.
type Controller struct {
	clock clock.Clock
	state *State
}

func NewController(clk clock.Clock, state *State) *Controller {
	return &Controller{
		clock: clk,
		state: state,
	}
}

// Reconcile never returns an error. Failing ticks are logged and the loop carries on at the regular interval.
func (c *Controller) Reconcile(ctx context.Context) (reconciler.Result, error) {
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithName(Name))
	start := c.clock.Now()
	result := c.tick(ctx)
	metrics.TickDuration.Observe(c.clock.Since(start).Seconds(), map[string]string{metrics.ResultLabel: result})
	return reconciler.Result{RequeueAfter: options.FromContext(ctx).CheckInterval}, nil
}

func (c *Controller) tick(ctx context.Context) (result string) {
	ctx, span := tracing.Tracer().Start(ctx, "nodescaler.tick")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("recovered from panic, %v", r)
			log.FromContext(ctx).Error(err, "tick failed", "stacktrace", string(debug.Stack()))
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			result = TickPanic
		}
		span.SetAttributes(attribute.String("nodescaler.tick.result", result))
	}()

	// 1. Retrieve current utilization
	cpu, mem := c.sample(ctx)
	// Nothing is observed unless both resources reported, so the windows only ever hold real samples
	if !cpu.HasData() || !mem.HasData() {
		log.FromContext(ctx).WithValues(
			"cpu-failed", cpu.Failed(), "cpu-samples", len(cpu.Samples),
			"mem-failed", mem.Failed(), "mem-samples", len(mem.Samples),
		).Info("no utilization data, skipping")
		return TickNoData
	}

	// 2. Aggregate per node
	snapshot := utilization.BuildSnapshot(ctx, cpu.Samples, mem.Samples, c.state.Thresholds)
	log.FromContext(ctx).WithValues(
		"nodes", len(snapshot.Nodes),
		"mean-cpu", snapshot.MeanCPU,
		"mean-mem", snapshot.MeanMem,
		"overloaded-ratio", snapshot.OverloadedRatio,
	).Info("fetched utilization")
	metrics.Utilization.Set(snapshot.MeanCPU, map[string]string{metrics.ResourceLabel: string(telemetry.ResourceCPU), metrics.KindLabel: observedKind})
	metrics.Utilization.Set(snapshot.MeanMem, map[string]string{metrics.ResourceLabel: string(telemetry.ResourceMemory), metrics.KindLabel: observedKind})
	metrics.OverloadedRatio.Set(snapshot.OverloadedRatio, map[string]string{})

	// 3. Forecast the next tick
	predicted := c.state.Predictor.ObserveAndPredict(snapshot.MeanCPU, snapshot.MeanMem)
	log.FromContext(ctx).WithValues("predicted-cpu", predicted.CPU, "predicted-mem", predicted.Mem).Info("predicted utilization")
	log.FromContext(ctx).V(1).Info("utilization history", "cpu", c.state.Predictor.CPUHistory(), "mem", c.state.Predictor.MemHistory())
	metrics.Utilization.Set(predicted.CPU, map[string]string{metrics.ResourceLabel: string(telemetry.ResourceCPU), metrics.KindLabel: predictedKind})
	metrics.Utilization.Set(predicted.Mem, map[string]string{metrics.ResourceLabel: string(telemetry.ResourceMemory), metrics.KindLabel: predictedKind})

	// 4. Decide
	fired := c.state.Policy.Evaluate(snapshot, predicted)
	log.FromContext(ctx).WithValues("policy", c.state.Policy.Name(), "fired", fired).Info("evaluated scaling policy")
	metrics.Decisions.Inc(map[string]string{
		metrics.PolicyLabel:   c.state.Policy.Name(),
		metrics.DecisionLabel: lo.Ternary(fired, "scale", "hold"),
	})
	span.SetAttributes(
		attribute.Float64("nodescaler.utilization.cpu", snapshot.MeanCPU),
		attribute.Float64("nodescaler.utilization.mem", snapshot.MeanMem),
		attribute.Bool("nodescaler.policy.fired", fired),
	)

	// 5. Persist the scale-up
	for _, r := range c.state.Actuator.MaybeScale(ctx, fired) {
		span.AddEvent("actuation", traceAttributes(r))
	}
	return lo.Ternary(fired, TickFired, TickNotFired)
}

// sample queries cpu and memory concurrently. Providers fail soft, so the group itself never fails.
func (c *Controller) sample(ctx context.Context) (cpu, mem telemetry.Result) {
	var g errgroup.Group
	g.Go(func() error {
		cpu = c.state.Telemetry.Query(ctx, telemetry.ResourceCPU)
		return nil
	})
	g.Go(func() error {
		mem = c.state.Telemetry.Query(ctx, telemetry.ResourceMemory)
		return nil
	})
	_ = g.Wait()
	return cpu, mem
}

func (c *Controller) Register(_ context.Context, m manager.Manager) error {
	return controllerruntime.NewControllerManagedBy(m).
		Named(Name).
		WatchesRawSource(singleton.Source()).
		Complete(singleton.AsReconciler(c))
}
