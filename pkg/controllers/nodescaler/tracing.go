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

package nodescaler

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodescaler/nodescaler/pkg/actuator"
)

func traceAttributes(r actuator.Result) trace.SpanStartEventOption {
	attrs := []attribute.KeyValue{
		attribute.String("nodescaler.target", r.Target),
		attribute.String("nodescaler.outcome", string(r.Outcome)),
		attribute.Int("nodescaler.replicas.from", int(r.From)),
		attribute.Int("nodescaler.replicas.to", int(r.To)),
	}
	if r.Err != nil {
		attrs = append(attrs, attribute.String("nodescaler.error", r.Err.Error()))
	}
	return trace.WithAttributes(attrs...)
}
