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
	"fmt"
	"net/url"
	"strings"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	validLogLevels        = sets.New("", "debug", "info", "error")
	validScalingPolicies  = sets.New(ScalingPolicyPredictive, ScalingPolicyOverloadRatio)
	validTargetKinds      = sets.New(TargetKindMachineSet, TargetKindMachineDeployment, TargetKindEKSNodeGroup)
	validTelemetrySources = sets.New(TelemetrySourcePrometheus, TelemetrySourceMetricsServer)
)

func (o *Options) Validate() error {
	return multierr.Combine(
		o.validateTarget(),
		o.validateFractions(),
		o.validateBounds(),
		o.validateEnums(),
		o.validateTelemetry(),
	)
}

func (o *Options) validateTarget() error {
	var err error
	switch {
	case o.TargetName == "" && o.TargetSelector == "":
		err = multierr.Append(err, fmt.Errorf("missing field, one of target-name or target-selector is required"))
	case o.TargetName != "" && o.TargetSelector != "":
		err = multierr.Append(err, fmt.Errorf("target-name and target-selector are mutually exclusive"))
	}
	if o.TargetSelector != "" {
		if _, parseErr := labels.Parse(o.TargetSelector); parseErr != nil {
			err = multierr.Append(err, serrors.Wrap(fmt.Errorf("target selector is not valid, %w", parseErr), "target-selector", o.TargetSelector))
		}
	}
	if o.GetTargetKind() == TargetKindEKSNodeGroup && o.ClusterName == "" {
		err = multierr.Append(err, fmt.Errorf("missing field, cluster-name is required for target kind %s", TargetKindEKSNodeGroup))
	}
	if o.GetTargetKind() != TargetKindEKSNodeGroup && o.TargetNamespace == "" {
		err = multierr.Append(err, fmt.Errorf("missing field, target-namespace"))
	}
	return err
}

func (o *Options) validateFractions() error {
	var err error
	for name, v := range map[string]float64{
		"cpu-threshold":        o.CPUThreshold,
		"mem-threshold":        o.MemThreshold,
		"node-usage-limit":     o.NodeUsageLimit,
		"tracing-sample-ratio": o.TracingSampleRatio,
	} {
		if v < 0 || v > 1 {
			err = multierr.Append(err, fmt.Errorf("%s must be between 0 and 1, got %v", name, v))
		}
	}
	return err
}

func (o *Options) validateBounds() error {
	var err error
	if o.CheckInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("check-interval must be positive"))
	}
	if o.MaxReplicas <= 0 {
		err = multierr.Append(err, fmt.Errorf("max-replicas must be positive"))
	}
	if o.PrometheusTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("prometheus-timeout must be positive"))
	}
	return err
}

func (o *Options) validateEnums() error {
	var err error
	if !validLogLevels.Has(o.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("invalid log-level %q", o.LogLevel))
	}
	if !validScalingPolicies.Has(o.GetScalingPolicy()) {
		err = multierr.Append(err, fmt.Errorf("invalid scaling-policy %q, valid policies are: [%s]", o.ScalingPolicy, join(validScalingPolicies)))
	}
	if !validTargetKinds.Has(o.GetTargetKind()) {
		err = multierr.Append(err, fmt.Errorf("invalid target-kind %q, valid kinds are: [%s]", o.TargetKind, join(validTargetKinds)))
	}
	if !validTelemetrySources.Has(o.GetTelemetrySource()) {
		err = multierr.Append(err, fmt.Errorf("invalid telemetry-source %q, valid sources are: [%s]", o.TelemetrySource, join(validTelemetrySources)))
	}
	return err
}

func (o *Options) validateTelemetry() error {
	if o.GetTelemetrySource() != TelemetrySourcePrometheus {
		return nil
	}
	endpoint, err := url.Parse(o.PrometheusURL)
	// url.Parse() will accept a lot of input without error; make
	// sure it's a real URL
	if err != nil || !endpoint.IsAbs() || endpoint.Hostname() == "" {
		return serrors.Wrap(fmt.Errorf("prometheus URL is not valid"), "prometheus-url", o.PrometheusURL)
	}
	if o.CPUQuery == "" || o.MemQuery == "" {
		return fmt.Errorf("missing field, cpu-query and mem-query are required")
	}
	return nil
}

func join[T ~string](s sets.Set[T]) string {
	return strings.Join(lo.Map(sets.List(s), func(v T, _ int) string { return string(v) }), ", ")
}
