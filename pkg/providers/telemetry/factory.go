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

package telemetry

import (
	"context"
	"fmt"

	"k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/nodescaler/nodescaler/pkg/operator/options"
)

// NewProvider returns the provider for the configured telemetry source. The metrics clientset is only used by the
// metrics-server source and may be nil otherwise.
func NewProvider(ctx context.Context, kubeClient client.Client, metricsClient versioned.Interface, clk clock.Clock) (Provider, error) {
	opts := options.FromContext(ctx)
	switch opts.GetTelemetrySource() {
	case options.TelemetrySourcePrometheus:
		api, err := NewPrometheusAPI(opts.PrometheusURL, opts.PrometheusTokenFile, opts.PrometheusCAFile)
		if err != nil {
			return nil, err
		}
		return NewPrometheusProvider(api, opts.CPUQuery, opts.MemQuery, opts.PrometheusTimeout, clk), nil
	case options.TelemetrySourceMetricsServer:
		if metricsClient == nil {
			return nil, fmt.Errorf("metrics-server source requires a metrics client")
		}
		return NewMetricsServerProvider(metricsClient, kubeClient, clk), nil
	default:
		return nil, fmt.Errorf("unknown telemetry source %q", opts.TelemetrySource)
	}
}
