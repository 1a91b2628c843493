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

	"sigs.k8s.io/controller-runtime/pkg/client"

	sdk "github.com/nodescaler/nodescaler/pkg/aws"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
)

// NewProvider returns the provider for the configured target kind. The EKS API is only used by the EKSNodeGroup kind
// and may be nil otherwise.
func NewProvider(ctx context.Context, kubeClient client.Client, eksapi sdk.EKSAPI) (Provider, error) {
	opts := options.FromContext(ctx)
	switch opts.GetTargetKind() {
	case options.TargetKindMachineSet:
		return NewKubernetesProvider(kubeClient, MachineSetGVK, opts.TargetNamespace), nil
	case options.TargetKindMachineDeployment:
		return NewKubernetesProvider(kubeClient, MachineDeploymentGVK, opts.TargetNamespace), nil
	case options.TargetKindEKSNodeGroup:
		if eksapi == nil {
			return nil, fmt.Errorf("target kind %s requires an EKS client", opts.TargetKind)
		}
		return NewEKSProvider(eksapi, opts.ClusterName), nil
	default:
		return nil, fmt.Errorf("unknown target kind %q", opts.TargetKind)
	}
}
