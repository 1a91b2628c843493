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
	"math"
	"net/http"
	"time"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/prometheus/client_golang/api"
	prometheusv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"k8s.io/client-go/transport"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/nodescaler/nodescaler/pkg/metrics"
	"github.com/nodescaler/nodescaler/pkg/tracing"
)

const SourcePrometheus = "prometheus"

// QueryAPI is the subset of the Prometheus HTTP API used to read utilization.
type QueryAPI interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...prometheusv1.Option) (model.Value, prometheusv1.Warnings, error)
}

// NewPrometheusAPI builds a query client that authenticates with the bearer token read from tokenFile and verifies
// the server against caFile. Empty paths disable the respective setting.
func NewPrometheusAPI(address, tokenFile, caFile string) (prometheusv1.API, error) {
	rt, err := transport.New(&transport.Config{
		BearerTokenFile: tokenFile,
		TLS:             transport.TLSConfig{CAFile: caFile},
	})
	if err != nil {
		return nil, serrors.Wrap(fmt.Errorf("building prometheus transport, %w", err), "token-file", tokenFile, "ca-file", caFile)
	}
	return newPrometheusAPI(address, rt)
}

func newPrometheusAPI(address string, rt http.RoundTripper) (prometheusv1.API, error) {
	client, err := api.NewClient(api.Config{Address: address, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client, %w", err)
	}
	return prometheusv1.NewAPI(client), nil
}

type PrometheusProvider struct {
	api     QueryAPI
	queries map[Resource]string
	timeout time.Duration
	clk     clock.Clock
}

func NewPrometheusProvider(api QueryAPI, cpuQuery, memQuery string, timeout time.Duration, clk clock.Clock) *PrometheusProvider {
	return &PrometheusProvider{
		api: api,
		queries: map[Resource]string{
			ResourceCPU:    cpuQuery,
			ResourceMemory: memQuery,
		},
		timeout: timeout,
		clk:     clk,
	}
}

// Query runs the instant query configured for the resource. Any failure is reported in the Result and never
// propagated, so a broken Prometheus degrades a tick to "no data".
func (p *PrometheusProvider) Query(ctx context.Context, resource Resource) Result {
	query, ok := p.queries[resource]
	if !ok {
		return Failed(fmt.Errorf("no query configured for resource %q", resource))
	}
	ctx, span := tracing.Tracer().Start(ctx, "telemetry.Query")
	defer span.End()
	span.SetAttributes(attribute.String("source", SourcePrometheus), attribute.String("resource", string(resource)))
	start := p.clk.Now()
	defer func() {
		metrics.QueryDuration.Observe(p.clk.Since(start).Seconds(), map[string]string{
			metrics.SourceLabel:   SourcePrometheus,
			metrics.ResourceLabel: string(resource),
		})
	}()

	result := p.query(ctx, query)
	if result.Failed() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, "query failed")
		metrics.QueryFailures.Inc(map[string]string{
			metrics.SourceLabel:   SourcePrometheus,
			metrics.ResourceLabel: string(resource),
		})
		log.FromContext(ctx).Error(result.Err, "failed querying utilization", "resource", resource)
		return result
	}
	span.SetAttributes(attribute.Int("samples", len(result.Samples)))
	return result
}

func (p *PrometheusProvider) query(ctx context.Context, query string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	value, warnings, err := p.api.Query(ctx, query, p.clk.Now())
	if err != nil {
		return Failed(serrors.Wrap(fmt.Errorf("request failed, %w", err), "query", query))
	}
	if len(warnings) > 0 {
		log.FromContext(ctx).V(1).Info("prometheus returned warnings", "query", query, "warnings", warnings)
	}
	vector, err := validateResponseType(value)
	if err != nil {
		return Failed(serrors.Wrap(fmt.Errorf("invalid response, %w", err), "query", query))
	}
	return Result{Samples: toSamples(ctx, vector)}
}

func validateResponseType(value model.Value) (model.Vector, error) {
	if value == nil {
		return nil, fmt.Errorf("expected %s and got no value", model.ValVector)
	}
	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("expected %s and got %s", model.ValVector, value.Type())
	}
	return vector, nil
}

// toSamples converts percent values to fractions. Series without an instance label or with a non-finite value
// cannot be attributed to a node and are dropped.
func toSamples(ctx context.Context, vector model.Vector) []Sample {
	var samples []Sample
	for _, s := range vector {
		instance := string(s.Metric[model.InstanceLabel])
		v := float64(s.Value)
		if instance == "" || math.IsNaN(v) || math.IsInf(v, 0) {
			log.FromContext(ctx).V(1).Info("dropping series", "metric", s.Metric.String(), "value", s.Value.String())
			continue
		}
		samples = append(samples, Sample{Instance: instance, Value: lo.Clamp(v/100, 0, 1)})
	}
	return samples
}
