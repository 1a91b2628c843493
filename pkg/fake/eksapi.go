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
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/google/uuid"
	"github.com/samber/lo"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
)

// EKSAPIBehavior must be reset between tests otherwise tests will
// pollute each other.
type EKSAPIBehavior struct {
	DescribeNodegroupBehavior     MockedFunction[eks.DescribeNodegroupInput, eks.DescribeNodegroupOutput]
	ListNodegroupsBehavior        MockedFunction[eks.ListNodegroupsInput, eks.ListNodegroupsOutput]
	UpdateNodegroupConfigBehavior MockedFunction[eks.UpdateNodegroupConfigInput, eks.UpdateNodegroupConfigOutput]

	mu         sync.RWMutex
	nodeGroups map[string]ekstypes.Nodegroup
}

var _ sdk.EKSAPI = &EKSAPI{}

// EKSAPI keeps an in-memory set of managed node groups. Describe and list read it and UpdateNodegroupConfig writes
// it, unless a behavior overrides the call.
type EKSAPI struct {
	EKSAPIBehavior
}

func NewEKSAPI() *EKSAPI {
	return &EKSAPI{EKSAPIBehavior: EKSAPIBehavior{nodeGroups: map[string]ekstypes.Nodegroup{}}}
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (e *EKSAPI) Reset() {
	e.DescribeNodegroupBehavior.Reset()
	e.ListNodegroupsBehavior.Reset()
	e.UpdateNodegroupConfigBehavior.Reset()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nodeGroups = map[string]ekstypes.Nodegroup{}
}

// NodeGroup returns a managed node group with the given sizes, modified at a fixed point in time.
func NodeGroup(name string, desired, maxSize int32, labels map[string]string) ekstypes.Nodegroup {
	return ekstypes.Nodegroup{
		NodegroupName: aws.String(name),
		Labels:        labels,
		Status:        ekstypes.NodegroupStatusActive,
		ModifiedAt:    lo.ToPtr(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)),
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			MinSize:     aws.Int32(0),
			DesiredSize: aws.Int32(desired),
			MaxSize:     aws.Int32(maxSize),
		},
	}
}

func (e *EKSAPI) SetNodeGroups(nodeGroups ...ekstypes.Nodegroup) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ng := range nodeGroups {
		e.nodeGroups[aws.ToString(ng.NodegroupName)] = ng
	}
}

func (e *EKSAPI) GetNodeGroup(name string) (ekstypes.Nodegroup, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ng, ok := e.nodeGroups[name]
	return ng, ok
}

func (e *EKSAPI) DescribeNodegroup(_ context.Context, input *eks.DescribeNodegroupInput, _ ...func(*eks.Options)) (*eks.DescribeNodegroupOutput, error) {
	return e.DescribeNodegroupBehavior.Invoke(input, func(input *eks.DescribeNodegroupInput) (*eks.DescribeNodegroupOutput, error) {
		ng, ok := e.GetNodeGroup(aws.ToString(input.NodegroupName))
		if !ok {
			return nil, &ekstypes.ResourceNotFoundException{Message: aws.String(fmt.Sprintf("No node group found for name: %s.", aws.ToString(input.NodegroupName)))}
		}
		return &eks.DescribeNodegroupOutput{Nodegroup: &ng}, nil
	})
}

func (e *EKSAPI) ListNodegroups(_ context.Context, input *eks.ListNodegroupsInput, _ ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error) {
	return e.ListNodegroupsBehavior.Invoke(input, func(*eks.ListNodegroupsInput) (*eks.ListNodegroupsOutput, error) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		names := lo.Keys(e.nodeGroups)
		slices.Sort(names)
		return &eks.ListNodegroupsOutput{Nodegroups: names}, nil
	})
}

func (e *EKSAPI) UpdateNodegroupConfig(_ context.Context, input *eks.UpdateNodegroupConfigInput, _ ...func(*eks.Options)) (*eks.UpdateNodegroupConfigOutput, error) {
	return e.UpdateNodegroupConfigBehavior.Invoke(input, func(input *eks.UpdateNodegroupConfigInput) (*eks.UpdateNodegroupConfigOutput, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		name := aws.ToString(input.NodegroupName)
		ng, ok := e.nodeGroups[name]
		if !ok {
			return nil, &ekstypes.ResourceNotFoundException{Message: aws.String(fmt.Sprintf("No node group found for name: %s.", name))}
		}
		if input.ScalingConfig != nil && input.ScalingConfig.DesiredSize != nil {
			scaling := lo.FromPtr(ng.ScalingConfig)
			scaling.DesiredSize = input.ScalingConfig.DesiredSize
			ng.ScalingConfig = &scaling
		}
		ng.ModifiedAt = lo.ToPtr(lo.FromPtr(ng.ModifiedAt).Add(time.Second))
		e.nodeGroups[name] = ng
		return &eks.UpdateNodegroupConfigOutput{
			Update: &ekstypes.Update{
				Id:     aws.String(uuid.NewString()),
				Status: ekstypes.UpdateStatusInProgress,
				Type:   ekstypes.UpdateTypeConfigUpdate,
			},
		}, nil
	})
}
