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

package controllers

import (
	"context"
	"fmt"

	"github.com/awslabs/operatorpkg/controller"
	"k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/nodescaler/nodescaler/pkg/actuator"
	sdk "github.com/nodescaler/nodescaler/pkg/aws"
	"github.com/nodescaler/nodescaler/pkg/cache"
	"github.com/nodescaler/nodescaler/pkg/controllers/nodescaler"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/policy"
	"github.com/nodescaler/nodescaler/pkg/prediction"
	"github.com/nodescaler/nodescaler/pkg/providers/scalingtarget"
	"github.com/nodescaler/nodescaler/pkg/providers/telemetry"
	"github.com/nodescaler/nodescaler/pkg/utilization"
)

func NewControllers(ctx context.Context, clk clock.Clock, kubeClient client.Client, metricsClient versioned.Interface,
	eksapi sdk.EKSAPI, unavailableTargets *cache.UnavailableTargets) ([]controller.Controller, error) {
	opts := options.FromContext(ctx)

	telemetryProvider, err := telemetry.NewProvider(ctx, kubeClient, metricsClient, clk)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry provider, %w", err)
	}
	scalingTargetProvider, err := scalingtarget.NewProvider(ctx, kubeClient, eksapi)
	if err != nil {
		return nil, fmt.Errorf("creating scaling target provider, %w", err)
	}
	scalingPolicy, err := policy.For(opts)
	if err != nil {
		return nil, err
	}
	selector, err := actuator.NewSelector(opts.TargetName, opts.TargetSelector)
	if err != nil {
		return nil, err
	}

	return []controller.Controller{
		nodescaler.NewController(clk, &nodescaler.State{
			Predictor:  prediction.NewPredictor(prediction.DefaultWindowSize),
			Telemetry:  telemetryProvider,
			Policy:     scalingPolicy,
			Actuator:   actuator.NewActuator(scalingTargetProvider, selector, int32(opts.MaxReplicas), unavailableTargets),
			Thresholds: utilization.Thresholds{CPU: opts.CPUThreshold, Mem: opts.MemThreshold},
		}),
	}, nil
}
