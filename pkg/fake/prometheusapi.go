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

package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	prometheusv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/nodescaler/nodescaler/pkg/providers/telemetry"
)

type PrometheusQueryInput struct {
	Query string
	Time  time.Time
}

var _ telemetry.QueryAPI = &PrometheusAPI{}

// PrometheusAPI answers instant queries from a table of canned values keyed by query.
type PrometheusAPI struct {
	QueryBehavior MockedFunction[PrometheusQueryInput, model.Vector]
	// Hang makes queries block until their context is done
	Hang atomic.Bool

	mu     sync.RWMutex
	values map[string]model.Value
}

func NewPrometheusAPI() *PrometheusAPI {
	return &PrometheusAPI{values: map[string]model.Value{}}
}

func (p *PrometheusAPI) Reset() {
	p.QueryBehavior.Reset()
	p.Hang.Store(false)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = map[string]model.Value{}
}

func (p *PrometheusAPI) SetValue(query string, value model.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[query] = value
}

// Query returns the value registered for the query, or an empty vector.
func (p *PrometheusAPI) Query(ctx context.Context, query string, ts time.Time, _ ...prometheusv1.Option) (model.Value, prometheusv1.Warnings, error) {
	if p.Hang.Load() {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	var value model.Value
	out, err := p.QueryBehavior.Invoke(&PrometheusQueryInput{Query: query, Time: ts}, func(*PrometheusQueryInput) (*model.Vector, error) {
		p.mu.RLock()
		defer p.mu.RUnlock()
		if v, ok := p.values[query]; ok {
			value = v
		}
		return &model.Vector{}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if value != nil {
		return value, nil, nil
	}
	return *out, nil, nil
}

// Vector builds an instant vector of percent values keyed by instance label.
func Vector(values map[string]float64) model.Vector {
	var vector model.Vector
	for instance, v := range values {
		vector = append(vector, &model.Sample{
			Metric:    model.Metric{model.InstanceLabel: model.LabelValue(instance)},
			Value:     model.SampleValue(v),
			Timestamp: model.Now(),
		})
	}
	return vector
}
