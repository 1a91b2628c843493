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

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/metrics/pkg/client/clientset/versioned"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/nodescaler/nodescaler/pkg/metrics"
	"github.com/nodescaler/nodescaler/pkg/tracing"
)

const SourceMetricsServer = "metrics-server"

// MetricsServerProvider reads node usage from the metrics.k8s.io API and reports it as a fraction of the node's
// allocatable capacity. Instances are node names.
type MetricsServerProvider struct {
	metricsClient versioned.Interface
	kubeClient    client.Client
	clk           clock.Clock
}

func NewMetricsServerProvider(metricsClient versioned.Interface, kubeClient client.Client, clk clock.Clock) *MetricsServerProvider {
	return &MetricsServerProvider{
		metricsClient: metricsClient,
		kubeClient:    kubeClient,
		clk:           clk,
	}
}

func (m *MetricsServerProvider) Query(ctx context.Context, resource Resource) Result {
	ctx, span := tracing.Tracer().Start(ctx, "telemetry.Query")
	defer span.End()
	span.SetAttributes(attribute.String("source", SourceMetricsServer), attribute.String("resource", string(resource)))
	start := m.clk.Now()
	defer func() {
		metrics.QueryDuration.Observe(m.clk.Since(start).Seconds(), map[string]string{
			metrics.SourceLabel:   SourceMetricsServer,
			metrics.ResourceLabel: string(resource),
		})
	}()

	samples, err := m.list(ctx, resource)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		metrics.QueryFailures.Inc(map[string]string{
			metrics.SourceLabel:   SourceMetricsServer,
			metrics.ResourceLabel: string(resource),
		})
		log.FromContext(ctx).Error(err, "failed querying utilization", "resource", resource)
		return Failed(err)
	}
	span.SetAttributes(attribute.Int("samples", len(samples)))
	return Result{Samples: samples}
}

func (m *MetricsServerProvider) list(ctx context.Context, resource Resource) ([]Sample, error) {
	name, err := resourceName(resource)
	if err != nil {
		return nil, err
	}
	nodeMetrics, err := m.metricsClient.MetricsV1beta1().NodeMetricses().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing node metrics, %w", err)
	}
	nodes := &corev1.NodeList{}
	if err := m.kubeClient.List(ctx, nodes); err != nil {
		return nil, fmt.Errorf("listing nodes, %w", err)
	}
	allocatable := lo.SliceToMap(nodes.Items, func(n corev1.Node) (string, corev1.ResourceList) {
		return n.Name, n.Status.Allocatable
	})

	var samples []Sample
	for _, nm := range nodeMetrics.Items {
		capacity, ok := allocatable[nm.Name][name]
		if !ok || capacity.IsZero() {
			continue
		}
		usage, ok := nm.Usage[name]
		if !ok {
			continue
		}
		samples = append(samples, Sample{
			Instance: nm.Name,
			Value:    lo.Clamp(float64(usage.MilliValue())/float64(capacity.MilliValue()), 0, 1),
		})
	}
	return samples, nil
}

func resourceName(resource Resource) (corev1.ResourceName, error) {
	switch resource {
	case ResourceCPU:
		return corev1.ResourceCPU, nil
	case ResourceMemory:
		return corev1.ResourceMemory, nil
	default:
		return "", fmt.Errorf("unsupported resource %q", resource)
	}
}
