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

package scalingtarget

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/awslabs/operatorpkg/serrors"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/controller-runtime/pkg/log"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
	nodescalercache "github.com/nodescaler/nodescaler/pkg/cache"
)

const (
	nodeGroupNamesKey   = "nodegroups"
	describeConcurrency = 10
)

// EKSProvider scales EKS managed node groups through their desired size.
type EKSProvider struct {
	eksapi      sdk.EKSAPI
	clusterName string
	// nodeGroupNames holds the node group names of the cluster for selector resolution
	nodeGroupNames *cache.Cache
}

func NewEKSProvider(eksapi sdk.EKSAPI, clusterName string) *EKSProvider {
	return &EKSProvider{
		eksapi:         eksapi,
		clusterName:    clusterName,
		nodeGroupNames: cache.New(nodescalercache.NodeGroupListTTL, nodescalercache.DefaultCleanupInterval),
	}
}

func (p *EKSProvider) Get(ctx context.Context, name string) (*Target, error) {
	nodeGroup, err := p.describe(ctx, name)
	if err != nil {
		return nil, err
	}
	return toTarget(nodeGroup), nil
}

// List describes every node group of the cluster and keeps those whose labels match the selector. Node group labels
// are the Kubernetes labels applied to the group's nodes.
func (p *EKSProvider) List(ctx context.Context, selector labels.Selector) ([]*Target, error) {
	names, err := p.listNames(ctx)
	if err != nil {
		return nil, err
	}
	nodeGroups := make([]*ekstypes.Nodegroup, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(describeConcurrency)
	for i, name := range names {
		g.Go(func() error {
			nodeGroup, err := p.describe(gctx, name)
			if IsNotFound(err) {
				log.FromContext(ctx).V(1).Info("node group disappeared while listing", "nodegroup", name)
				p.nodeGroupNames.Delete(nodeGroupNamesKey)
				return nil
			}
			if err != nil {
				return err
			}
			nodeGroups[i] = nodeGroup
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var targets []*Target
	for _, nodeGroup := range nodeGroups {
		if nodeGroup != nil && selector.Matches(labels.Set(nodeGroup.Labels)) {
			targets = append(targets, toTarget(nodeGroup))
		}
	}
	slices.SortFunc(targets, func(a, b *Target) int { return strings.Compare(a.Name, b.Name) })
	return targets, nil
}

// SetReplicas updates the desired size. EKS offers no write precondition, so the node group is described again and
// the write is refused when its size or modification time moved since the target was read.
func (p *EKSProvider) SetReplicas(ctx context.Context, target *Target, replicas int32) error {
	current, err := p.describe(ctx, target.Name)
	if err != nil {
		return err
	}
	if observed := toTarget(current); observed.ResourceVersion != target.ResourceVersion || observed.Replicas != target.Replicas {
		return &ConflictError{Target: target.Name, Expected: target.ResourceVersion, Actual: observed.ResourceVersion}
	}
	out, err := p.eksapi.UpdateNodegroupConfig(ctx, &eks.UpdateNodegroupConfigInput{
		ClusterName:        aws.String(p.clusterName),
		NodegroupName:      aws.String(target.Name),
		ClientRequestToken: aws.String(uuid.NewString()),
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			DesiredSize: aws.Int32(replicas),
		},
	})
	if err != nil {
		return serrors.Wrap(fmt.Errorf("updating node group config, %w", err), "nodegroup", target.Name, "cluster", p.clusterName)
	}
	if out.Update != nil {
		log.FromContext(ctx).V(1).Info("submitted node group update", "nodegroup", target.Name, "update-id", aws.ToString(out.Update.Id))
	}
	return nil
}

func (p *EKSProvider) describe(ctx context.Context, name string) (*ekstypes.Nodegroup, error) {
	out, err := p.eksapi.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(p.clusterName),
		NodegroupName: aws.String(name),
	})
	if err != nil {
		return nil, serrors.Wrap(fmt.Errorf("describing node group, %w", err), "nodegroup", name, "cluster", p.clusterName)
	}
	if out.Nodegroup == nil {
		return nil, serrors.Wrap(fmt.Errorf("describing node group, empty response"), "nodegroup", name, "cluster", p.clusterName)
	}
	return out.Nodegroup, nil
}

func (p *EKSProvider) listNames(ctx context.Context) ([]string, error) {
	if names, ok := p.nodeGroupNames.Get(nodeGroupNamesKey); ok {
		return names.([]string), nil
	}
	var names []string
	paginator := eks.NewListNodegroupsPaginator(p.eksapi, &eks.ListNodegroupsInput{ClusterName: aws.String(p.clusterName)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, serrors.Wrap(fmt.Errorf("listing node groups, %w", err), "cluster", p.clusterName)
		}
		names = append(names, page.Nodegroups...)
	}
	slices.Sort(names)
	p.nodeGroupNames.SetDefault(nodeGroupNamesKey, names)
	return names, nil
}

func toTarget(nodeGroup *ekstypes.Nodegroup) *Target {
	target := &Target{
		Name:   aws.ToString(nodeGroup.NodegroupName),
		Labels: nodeGroup.Labels,
	}
	if nodeGroup.ScalingConfig != nil {
		target.Replicas = aws.ToInt32(nodeGroup.ScalingConfig.DesiredSize)
		target.MaxReplicas = nodeGroup.ScalingConfig.MaxSize
	}
	if nodeGroup.ModifiedAt != nil {
		target.ResourceVersion = nodeGroup.ModifiedAt.UTC().Format(time.RFC3339Nano)
	}
	return target
}
