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
)

// Resource is a node utilization dimension
type Resource string

const (
	ResourceCPU    Resource = "cpu"
	ResourceMemory Resource = "memory"
)

// Sample is the utilization of one node, as a fraction in [0,1]
type Sample struct {
	Instance string
	Value    float64
}

// Result is the outcome of a single utilization query. A successful query that matched nothing is Empty, a query
// that could not be answered is Failed. Both carry no samples.
type Result struct {
	Samples []Sample
	Err     error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

func (r Result) Empty() bool {
	return r.Err == nil && len(r.Samples) == 0
}

// HasData is true when the result can be used for a scaling decision
func (r Result) HasData() bool {
	return r.Err == nil && len(r.Samples) > 0
}

func Failed(err error) Result {
	return Result{Err: err}
}

// Provider answers per-node utilization queries. Implementations fail soft: errors are logged and surfaced
// through Result, never returned.
type Provider interface {
	Query(context.Context, Resource) Result
}
