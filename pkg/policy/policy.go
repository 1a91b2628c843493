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

package policy

import (
	"fmt"

	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/prediction"
	"github.com/nodescaler/nodescaler/pkg/utilization"
)

// Policy decides whether the cluster should grow. Policies are stateless; firing on consecutive ticks is expected
// since every tick grows a target by at most one replica.
type Policy interface {
	Name() string
	Evaluate(utilization.Snapshot, prediction.Prediction) bool
}

// For returns the policy selected by the options
func For(opts *options.Options) (Policy, error) {
	switch opts.GetScalingPolicy() {
	case options.ScalingPolicyPredictive:
		return &Predictive{CPUThreshold: opts.CPUThreshold, MemThreshold: opts.MemThreshold}, nil
	case options.ScalingPolicyOverloadRatio:
		return &OverloadRatio{NodeUsageLimit: opts.NodeUsageLimit}, nil
	default:
		return nil, fmt.Errorf("unknown scaling policy %q", opts.ScalingPolicy)
	}
}

// Predictive fires when the forecast of both cpu and memory exceeds their thresholds.
type Predictive struct {
	CPUThreshold float64
	MemThreshold float64
}

func (p *Predictive) Name() string { return string(options.ScalingPolicyPredictive) }

func (p *Predictive) Evaluate(_ utilization.Snapshot, predicted prediction.Prediction) bool {
	return predicted.CPU > p.CPUThreshold && predicted.Mem > p.MemThreshold
}

// OverloadRatio fires when the share of overloaded nodes reaches the limit. It only looks at the current snapshot.
type OverloadRatio struct {
	NodeUsageLimit float64
}

func (o *OverloadRatio) Name() string { return string(options.ScalingPolicyOverloadRatio) }

func (o *OverloadRatio) Evaluate(snapshot utilization.Snapshot, _ prediction.Prediction) bool {
	return !snapshot.Empty() && snapshot.OverloadedRatio >= o.NodeUsageLimit
}
