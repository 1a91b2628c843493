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

package actuator

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/samber/lo"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/nodescaler/nodescaler/pkg/cache"
	awserrors "github.com/nodescaler/nodescaler/pkg/errors"
	"github.com/nodescaler/nodescaler/pkg/metrics"
	"github.com/nodescaler/nodescaler/pkg/providers/scalingtarget"
)

type Outcome string

const (
	OutcomeScaled      Outcome = "Scaled"
	OutcomeAtCeiling   Outcome = "AtCeiling"
	OutcomeSkipped     Outcome = "Skipped"
	OutcomeReadFailed  Outcome = "ReadFailed"
	OutcomePatchFailed Outcome = "PatchFailed"
	// OutcomeUnavailable is reported for node groups still busy with a previous update
	OutcomeUnavailable Outcome = "Unavailable"
)

const (
	// writeAttempts bounds how often a write is tried when the node group keeps changing underneath it or the API
	// throttles us
	writeAttempts   = 3
	writeRetryDelay = 100 * time.Millisecond
)

// Result is the outcome of one tick for one node group.
type Result struct {
	Target  string
	Outcome Outcome
	From    int32
	To      int32
	Err     error
}

// Actuator grows node groups by one replica, bounded by a ceiling.
type Actuator struct {
	provider           scalingtarget.Provider
	selector           Selector
	maxReplicas        int32
	unavailableTargets *cache.UnavailableTargets

	retryDelay   time.Duration
	resolvedHash uint64
}

func NewActuator(provider scalingtarget.Provider, selector Selector, maxReplicas int32, unavailableTargets *cache.UnavailableTargets) *Actuator {
	return &Actuator{
		provider:           provider,
		selector:           selector,
		maxReplicas:        maxReplicas,
		unavailableTargets: unavailableTargets,
		retryDelay:         writeRetryDelay,
	}
}

// MaybeScale requests one more replica on every selected node group when fired is set. Nothing is read when it is
// not. Failures are logged and reported per target, never returned, so one broken node group cannot stop the others.
func (a *Actuator) MaybeScale(ctx context.Context, fired bool) []Result {
	if !fired {
		return []Result{a.record(ctx, Result{Target: a.selector.String(), Outcome: OutcomeSkipped})}
	}
	targets, err := a.resolve(ctx)
	if err != nil {
		return []Result{a.record(ctx, Result{Target: a.selector.String(), Outcome: OutcomeReadFailed, Err: err})}
	}
	return lo.Map(targets, func(target *scalingtarget.Target, _ int) Result {
		return a.record(ctx, a.scale(ctx, target))
	})
}

func (a *Actuator) resolve(ctx context.Context) ([]*scalingtarget.Target, error) {
	if a.selector.IsName() {
		target, err := a.provider.Get(ctx, a.selector.Name)
		if err != nil {
			return nil, err
		}
		return []*scalingtarget.Target{target}, nil
	}
	targets, err := a.provider.List(ctx, a.selector.Labels)
	if err != nil {
		return nil, err
	}
	names := lo.Map(targets, func(t *scalingtarget.Target, _ int) string { return t.String() })
	if hash, err := hashstructure.Hash(names, hashstructure.FormatV2, nil); err == nil && hash != a.resolvedHash {
		a.resolvedHash = hash
		log.FromContext(ctx).WithValues("selector", a.selector.String(), "targets", names).Info("resolved scaling targets")
	}
	if len(targets) == 0 {
		log.FromContext(ctx).WithValues("selector", a.selector.String()).Info("no node group matches the target selector")
	}
	return targets, nil
}

// scale writes current+1 under an optimistic lock. A conflict or a throttled write re-reads the node group and
// re-checks the ceiling before the next attempt.
func (a *Actuator) scale(ctx context.Context, target *scalingtarget.Target) Result {
	result := Result{Target: target.String(), From: target.Replicas, To: target.Replicas}
	if a.unavailableTargets.IsUnavailable(target.String()) {
		result.Outcome = OutcomeUnavailable
		return result
	}
	attempt := 0
	err := retry.Do(func() error {
		if attempt++; attempt > 1 {
			current, err := a.provider.Get(ctx, target.Name)
			if err != nil {
				result.Outcome = OutcomeReadFailed
				return err
			}
			target = current
		}
		result.From, result.To = target.Replicas, target.Replicas
		if ceiling := a.ceiling(target); target.Replicas >= ceiling {
			result.Outcome = OutcomeAtCeiling
			return nil
		}
		result.To = target.Replicas + 1
		if err := a.provider.SetReplicas(ctx, target, result.To); err != nil {
			result.Outcome = OutcomePatchFailed
			return err
		}
		result.Outcome = OutcomeScaled
		return nil
	},
		retry.Attempts(writeAttempts),
		retry.Delay(a.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.FromContext(ctx).V(1).Info("scaling node group failed, retrying", "target", target.String(), "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		result.Err = err
		if result.Outcome == OutcomeScaled || result.Outcome == "" {
			result.Outcome = OutcomePatchFailed
		}
		if result.Outcome == OutcomePatchFailed {
			result.To = result.From
		}
		if awserrors.IsResourceInUse(err) {
			a.unavailableTargets.MarkUnavailable(ctx, target.String(), awserrors.ResourceInUseCode)
		}
	}
	return result
}

func retryable(err error) bool {
	return scalingtarget.IsConflict(err) || awserrors.IsThrottled(err)
}

func (a *Actuator) ceiling(target *scalingtarget.Target) int32 {
	if target.MaxReplicas != nil {
		return min(a.maxReplicas, *target.MaxReplicas)
	}
	return a.maxReplicas
}

func (a *Actuator) record(ctx context.Context, result Result) Result {
	logger := log.FromContext(ctx).WithValues("target", result.Target)
	switch result.Outcome {
	case OutcomeScaled:
		logger.Info("scaled node group", "from", result.From, "to", result.To)
	case OutcomeAtCeiling:
		logger.Info("at ceiling, skipping", "replicas", result.From, "max-replicas", a.maxReplicas)
	case OutcomeSkipped:
		logger.V(1).Info("policy did not fire, skipping")
	case OutcomeUnavailable:
		logger.V(1).Info("node group update in progress, skipping")
	case OutcomeReadFailed:
		logger.Error(fmt.Errorf("reading node group, %w", result.Err), "failed reading node group, skipping")
	case OutcomePatchFailed:
		logger.Error(fmt.Errorf("scaling node group, %w", result.Err), "failed scaling node group, skipping", "from", result.From)
	}
	metrics.Actuations.Inc(map[string]string{
		metrics.TargetLabel:  result.Target,
		metrics.OutcomeLabel: string(result.Outcome),
	})
	if result.Outcome != OutcomeSkipped && result.Outcome != OutcomeReadFailed {
		metrics.TargetReplicas.Set(float64(result.To), map[string]string{metrics.TargetLabel: result.Target})
	}
	return result
}
