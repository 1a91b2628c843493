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

	"github.com/nodescaler/nodescaler/pkg/providers/telemetry"
)

var _ telemetry.Provider = &TelemetryProvider{}

// TelemetryProvider replays queued results per resource. A resource without queued results reports no data.
type TelemetryProvider struct {
	mu      sync.Mutex
	results map[telemetry.Resource][]telemetry.Result
	calls   map[telemetry.Resource]int
}

func NewTelemetryProvider() *TelemetryProvider {
	p := &TelemetryProvider{}
	p.Reset()
	return p
}

func (p *TelemetryProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = map[telemetry.Resource][]telemetry.Result{}
	p.calls = map[telemetry.Resource]int{}
}

// Enqueue queues results returned by subsequent queries of the resource, in order.
func (p *TelemetryProvider) Enqueue(resource telemetry.Resource, results ...telemetry.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[resource] = append(p.results[resource], results...)
}

// Samples builds a successful result from instance to utilization fraction pairs.
func Samples(values map[string]float64) telemetry.Result {
	result := telemetry.Result{}
	for instance, v := range values {
		result.Samples = append(result.Samples, telemetry.Sample{Instance: instance, Value: v})
	}
	return result
}

func (p *TelemetryProvider) Query(_ context.Context, resource telemetry.Resource) telemetry.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[resource]++
	queued := p.results[resource]
	if len(queued) == 0 {
		return telemetry.Result{}
	}
	p.results[resource] = queued[1:]
	return queued[0]
}

func (p *TelemetryProvider) Calls(resource telemetry.Resource) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[resource]
}
