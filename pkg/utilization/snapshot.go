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

package utilization

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/nodescaler/nodescaler/pkg/providers/telemetry"
)

type Thresholds struct {
	CPU float64
	Mem float64
}

// NodeSample is the utilization of a single node. A nil field means no sample was reported.
type NodeSample struct {
	Instance string
	CPU      *float64
	Mem      *float64
}

// Overloaded is true when both cpu and memory exceed their thresholds. A missing sample never exceeds a threshold.
func (n NodeSample) Overloaded(t Thresholds) bool {
	return lo.FromPtr(n.CPU) > t.CPU && lo.FromPtr(n.Mem) > t.Mem
}

// Snapshot is the cluster-wide view of one tick. The node population is defined by the CPU result set.
type Snapshot struct {
	Nodes           map[string]NodeSample
	MeanCPU         float64
	MeanMem         float64
	OverloadedRatio float64
	// MissingMemory lists nodes that reported cpu but no memory; they are counted with mem=0
	MissingMemory []string
}

// Empty snapshots carry no load information and must not drive a scaling decision
func (s Snapshot) Empty() bool {
	return len(s.Nodes) == 0
}

// BuildSnapshot joins cpu and memory samples by instance and derives cluster statistics.
func BuildSnapshot(ctx context.Context, cpu, mem []telemetry.Sample, thresholds Thresholds) Snapshot {
	snapshot := Snapshot{Nodes: map[string]NodeSample{}}
	if len(cpu) == 0 {
		return snapshot
	}
	memByInstance := lo.SliceToMap(mem, func(s telemetry.Sample) (string, float64) { return s.Instance, s.Value })
	for _, s := range cpu {
		node := NodeSample{Instance: s.Instance, CPU: lo.ToPtr(s.Value)}
		if m, ok := memByInstance[s.Instance]; ok {
			node.Mem = lo.ToPtr(m)
		}
		snapshot.Nodes[s.Instance] = node
	}

	var sumCPU, sumMem float64
	var overloaded int
	for _, instance := range sortedKeys(snapshot.Nodes) {
		node := snapshot.Nodes[instance]
		if node.Mem == nil {
			log.FromContext(ctx).WithValues("instance", instance).Info("node reported no memory utilization, counting it as 0")
			snapshot.MissingMemory = append(snapshot.MissingMemory, instance)
		}
		sumCPU += lo.FromPtr(node.CPU)
		sumMem += lo.FromPtr(node.Mem)
		if node.Overloaded(thresholds) {
			overloaded++
		}
	}
	total := float64(len(snapshot.Nodes))
	snapshot.MeanCPU = sumCPU / total
	snapshot.MeanMem = sumMem / total
	snapshot.OverloadedRatio = float64(overloaded) / total
	return snapshot
}

func sortedKeys(m map[string]NodeSample) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
