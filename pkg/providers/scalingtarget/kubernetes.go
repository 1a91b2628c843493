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
	"strconv"
	"strings"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var (
	MachineSetGVK = schema.GroupVersionKind{Group: "machine.openshift.io", Version: "v1beta1", Kind: "MachineSet"}
	// MachineDeploymentGVK is the Cluster API machine deployment
	MachineDeploymentGVK = schema.GroupVersionKind{Group: "cluster.x-k8s.io", Version: "v1beta1", Kind: "MachineDeployment"}
)

// maxSizeAnnotationSuffix is the cluster-autoscaler annotation bounding a machine group, prefixed with the API group
const maxSizeAnnotationSuffix = "/cluster-api-autoscaler-node-group-max-size"

// KubernetesProvider scales node groups modeled as Kubernetes resources with a spec.replicas field.
type KubernetesProvider struct {
	kubeClient client.Client
	gvk        schema.GroupVersionKind
	namespace  string
}

func NewKubernetesProvider(kubeClient client.Client, gvk schema.GroupVersionKind, namespace string) *KubernetesProvider {
	return &KubernetesProvider{
		kubeClient: kubeClient,
		gvk:        gvk,
		namespace:  namespace,
	}
}

func (p *KubernetesProvider) Get(ctx context.Context, name string) (*Target, error) {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(p.gvk)
	if err := p.kubeClient.Get(ctx, types.NamespacedName{Namespace: p.namespace, Name: name}, u); err != nil {
		return nil, serrors.Wrap(fmt.Errorf("getting node group, %w", err), strings.ToLower(p.gvk.Kind), types.NamespacedName{Namespace: p.namespace, Name: name})
	}
	return p.toTarget(ctx, u)
}

func (p *KubernetesProvider) List(ctx context.Context, selector labels.Selector) ([]*Target, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(p.gvk.GroupVersion().WithKind(p.gvk.Kind + "List"))
	if err := p.kubeClient.List(ctx, list, client.InNamespace(p.namespace), client.MatchingLabelsSelector{Selector: selector}); err != nil {
		return nil, serrors.Wrap(fmt.Errorf("listing node groups, %w", err), "selector", selector.String())
	}
	var targets []*Target
	for i := range list.Items {
		target, err := p.toTarget(ctx, &list.Items[i])
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	slices.SortFunc(targets, func(a, b *Target) int { return strings.Compare(a.Name, b.Name) })
	return targets, nil
}

// SetReplicas patches spec.replicas with the resourceVersion of the read object as a precondition.
func (p *KubernetesProvider) SetReplicas(ctx context.Context, target *Target, replicas int32) error {
	if target.object == nil {
		return fmt.Errorf("target %s was not read by this provider", target)
	}
	stored := target.object.DeepCopy()
	updated := target.object.DeepCopy()
	if err := unstructured.SetNestedField(updated.Object, int64(replicas), "spec", "replicas"); err != nil {
		return fmt.Errorf("setting replicas, %w", err)
	}
	if err := p.kubeClient.Patch(ctx, updated, client.MergeFromWithOptions(stored, client.MergeFromWithOptimisticLock{})); err != nil {
		return serrors.Wrap(fmt.Errorf("patching replicas, %w", err), strings.ToLower(p.gvk.Kind), target.String())
	}
	return nil
}

func (p *KubernetesProvider) toTarget(ctx context.Context, u *unstructured.Unstructured) (*Target, error) {
	replicas, found, err := unstructured.NestedInt64(u.Object, "spec", "replicas")
	if err != nil {
		return nil, serrors.Wrap(fmt.Errorf("reading spec.replicas, %w", err), strings.ToLower(p.gvk.Kind), client.ObjectKeyFromObject(u))
	}
	if !found {
		log.FromContext(ctx).V(1).Info("node group has no spec.replicas, treating it as 0", strings.ToLower(p.gvk.Kind), client.ObjectKeyFromObject(u))
	}
	return &Target{
		Name:            u.GetName(),
		Namespace:       u.GetNamespace(),
		Labels:          u.GetLabels(),
		Replicas:        int32(replicas),
		MaxReplicas:     p.maxSize(ctx, u),
		ResourceVersion: u.GetResourceVersion(),
		object:          u,
	}, nil
}

func (p *KubernetesProvider) maxSize(ctx context.Context, u *unstructured.Unstructured) *int32 {
	value, ok := u.GetAnnotations()[p.gvk.Group+maxSizeAnnotationSuffix]
	if !ok {
		return nil
	}
	size, err := strconv.ParseInt(value, 10, 32)
	if err != nil || size < 0 {
		log.FromContext(ctx).Info("ignoring invalid max size annotation", strings.ToLower(p.gvk.Kind), client.ObjectKeyFromObject(u), "value", value)
		return nil
	}
	return lo.ToPtr(int32(size))
}
