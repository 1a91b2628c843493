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

package actuator_test

import (
	"context"
	"testing"

	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"

	"github.com/nodescaler/nodescaler/pkg/actuator"
	awserrors "github.com/nodescaler/nodescaler/pkg/errors"
	"github.com/nodescaler/nodescaler/pkg/fake"
	"github.com/nodescaler/nodescaler/pkg/providers/scalingtarget"
	"github.com/nodescaler/nodescaler/pkg/test"
)

const namespace = "openshift-machine-api"

var ctx context.Context
var env *test.Environment

func TestActuator(t *testing.T) {
	ctx = test.TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Actuator")
}

var _ = BeforeSuite(func() {
	env = test.NewEnvironment()
})

var _ = BeforeEach(func() {
	env.Reset()
})

func byName(name string) actuator.Selector {
	selector, err := actuator.NewSelector(name, "")
	Expect(err).ToNot(HaveOccurred())
	return selector
}

func replicas(kubeClient client.Client, name string) int64 {
	u := test.MachineSet(name, 0, nil)
	Expect(kubeClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, u)).To(Succeed())
	r, _, err := unstructured.NestedInt64(u.Object, "spec", "replicas")
	Expect(err).ToNot(HaveOccurred())
	return r
}

// bumpReplicas raises spec.replicas behind the actuator's back, without a resourceVersion precondition
func bumpReplicas(c client.Client, name string, to int64) {
	u := test.MachineSet(name, 0, nil)
	Expect(c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, u)).To(Succeed())
	stored := u.DeepCopy()
	Expect(unstructured.SetNestedField(u.Object, to, "spec", "replicas")).To(Succeed())
	Expect(c.Patch(ctx, u, client.MergeFrom(stored))).To(Succeed())
}

var _ = Describe("Selector", func() {
	It("should select by name", func() {
		selector, err := actuator.NewSelector("workers", "")
		Expect(err).ToNot(HaveOccurred())
		Expect(selector.IsName()).To(BeTrue())
		Expect(selector.String()).To(Equal("workers"))
	})
	It("should select by labels", func() {
		selector, err := actuator.NewSelector("", "role=worker")
		Expect(err).ToNot(HaveOccurred())
		Expect(selector.IsName()).To(BeFalse())
		Expect(selector.String()).To(Equal("role=worker"))
	})
	DescribeTable("should reject",
		func(name, selector string) {
			_, err := actuator.NewSelector(name, selector)
			Expect(err).To(HaveOccurred())
		},
		Entry("both a name and a selector", "workers", "role=worker"),
		Entry("neither", "", ""),
		Entry("a malformed selector", "", "role in (worker"),
	)
})

var _ = Describe("MachineSets", func() {
	var provider *scalingtarget.KubernetesProvider

	BeforeEach(func() {
		provider = scalingtarget.NewKubernetesProvider(env.KubeClient, scalingtarget.MachineSetGVK, namespace)
		Expect(env.KubeClient.Create(ctx, test.MachineSet("workers", 2, map[string]string{"role": "worker"}))).To(Succeed())
	})
	It("should add one replica when the policy fires", func() {
		results := actuator.NewActuator(provider, byName("workers"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results).To(HaveLen(1))
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeScaled))
		Expect(results[0].From).To(BeNumerically("==", 2))
		Expect(results[0].To).To(BeNumerically("==", 3))
		Expect(results[0].Err).ToNot(HaveOccurred())
		Expect(replicas(env.KubeClient, "workers")).To(BeNumerically("==", 3))
	})
	It("should add exactly one replica per tick", func() {
		a := actuator.NewActuator(provider, byName("workers"), 10, env.UnavailableTargets)
		a.MaybeScale(ctx, true)
		a.MaybeScale(ctx, true)
		Expect(replicas(env.KubeClient, "workers")).To(BeNumerically("==", 4))
	})
	It("should not read the node group when the policy does not fire", func() {
		var gets int
		kubeClient := crfake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
			Get: func(ctx context.Context, c client.WithWatch, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
				gets++
				return c.Get(ctx, key, obj, opts...)
			},
		}).Build()
		provider = scalingtarget.NewKubernetesProvider(kubeClient, scalingtarget.MachineSetGVK, namespace)
		results := actuator.NewActuator(provider, byName("workers"), 10, env.UnavailableTargets).MaybeScale(ctx, false)
		Expect(results).To(HaveLen(1))
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeSkipped))
		Expect(gets).To(BeZero())
	})
	It("should not write at the ceiling", func() {
		results := actuator.NewActuator(provider, byName("workers"), 2, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeAtCeiling))
		Expect(results[0].To).To(BeNumerically("==", 2))
		Expect(replicas(env.KubeClient, "workers")).To(BeNumerically("==", 2))
	})
	It("should not write above the ceiling", func() {
		Expect(env.KubeClient.Create(ctx, test.MachineSet("oversized", 7, nil))).To(Succeed())
		results := actuator.NewActuator(provider, byName("oversized"), 5, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeAtCeiling))
		Expect(replicas(env.KubeClient, "oversized")).To(BeNumerically("==", 7))
	})
	It("should bound the ceiling by the node group max size", func() {
		ms := test.MachineSet("bounded", 3, nil)
		ms.SetAnnotations(map[string]string{"machine.openshift.io/cluster-api-autoscaler-node-group-max-size": "3"})
		Expect(env.KubeClient.Create(ctx, ms)).To(Succeed())
		results := actuator.NewActuator(provider, byName("bounded"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeAtCeiling))
	})
	It("should report a missing node group as a read failure", func() {
		results := actuator.NewActuator(provider, byName("missing"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results).To(HaveLen(1))
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeReadFailed))
		Expect(scalingtarget.IsNotFound(results[0].Err)).To(BeTrue())
	})
	It("should scale every node group matching the selector", func() {
		Expect(env.KubeClient.Create(ctx, test.MachineSet("workers-large", 5, map[string]string{"role": "worker"}))).To(Succeed())
		Expect(env.KubeClient.Create(ctx, test.MachineSet("infra", 1, map[string]string{"role": "infra"}))).To(Succeed())
		selector, err := actuator.NewSelector("", "role=worker")
		Expect(err).ToNot(HaveOccurred())

		results := actuator.NewActuator(provider, selector, 5, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(lo.Map(results, func(r actuator.Result, _ int) actuator.Outcome { return r.Outcome })).To(Equal([]actuator.Outcome{
			actuator.OutcomeScaled,
			actuator.OutcomeAtCeiling,
		}))
		Expect(replicas(env.KubeClient, "workers")).To(BeNumerically("==", 3))
		Expect(replicas(env.KubeClient, "workers-large")).To(BeNumerically("==", 5))
		Expect(replicas(env.KubeClient, "infra")).To(BeNumerically("==", 1))
	})
	It("should do nothing when the selector matches no node group", func() {
		selector, err := actuator.NewSelector("", "role=gpu")
		Expect(err).ToNot(HaveOccurred())
		Expect(actuator.NewActuator(provider, selector, 10, env.UnavailableTargets).MaybeScale(ctx, true)).To(BeEmpty())
	})
	Context("Conflicts", func() {
		var patches int
		var bumps int

		// conflictingClient moves spec.replicas forward before each of the first n guarded patches reaches the store
		conflictingClient := func(n int) client.Client {
			patches, bumps = 0, 0
			kubeClient := crfake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
				Patch: func(ctx context.Context, c client.WithWatch, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
					patches++
					if bumps < n {
						bumps++
						bumpReplicas(c, obj.GetName(), replicas(c, obj.GetName())+1)
					}
					return c.Patch(ctx, obj, patch, opts...)
				},
			}).Build()
			Expect(kubeClient.Create(ctx, test.MachineSet("workers", 2, nil))).To(Succeed())
			return kubeClient
		}

		It("should re-read and retry after a conflict", func() {
			kubeClient := conflictingClient(1)
			provider = scalingtarget.NewKubernetesProvider(kubeClient, scalingtarget.MachineSetGVK, namespace)
			results := actuator.NewActuator(provider, byName("workers"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
			Expect(results[0].Outcome).To(Equal(actuator.OutcomeScaled))
			Expect(results[0].From).To(BeNumerically("==", 3))
			Expect(results[0].To).To(BeNumerically("==", 4))
			Expect(patches).To(Equal(2))
			Expect(replicas(kubeClient, "workers")).To(BeNumerically("==", 4))
		})
		It("should re-check the ceiling after a conflict", func() {
			kubeClient := conflictingClient(1)
			provider = scalingtarget.NewKubernetesProvider(kubeClient, scalingtarget.MachineSetGVK, namespace)
			results := actuator.NewActuator(provider, byName("workers"), 3, env.UnavailableTargets).MaybeScale(ctx, true)
			Expect(results[0].Outcome).To(Equal(actuator.OutcomeAtCeiling))
			Expect(patches).To(Equal(1))
			Expect(replicas(kubeClient, "workers")).To(BeNumerically("==", 3))
		})
		It("should give up after three conflicting attempts", func() {
			kubeClient := conflictingClient(100)
			provider = scalingtarget.NewKubernetesProvider(kubeClient, scalingtarget.MachineSetGVK, namespace)
			results := actuator.NewActuator(provider, byName("workers"), 100, env.UnavailableTargets).MaybeScale(ctx, true)
			Expect(results[0].Outcome).To(Equal(actuator.OutcomePatchFailed))
			Expect(scalingtarget.IsConflict(results[0].Err)).To(BeTrue())
			Expect(results[0].To).To(Equal(results[0].From))
			Expect(patches).To(Equal(3))
		})
	})
})

var _ = Describe("Managed node groups", func() {
	var provider *scalingtarget.EKSProvider

	BeforeEach(func() {
		provider = scalingtarget.NewEKSProvider(env.EKSAPI, "test-cluster")
		env.EKSAPI.SetNodeGroups(
			fake.NodeGroup("ng-a", 2, 6, map[string]string{"role": "worker"}),
			fake.NodeGroup("ng-full", 4, 4, map[string]string{"role": "worker"}),
		)
	})
	It("should raise the desired size", func() {
		results := actuator.NewActuator(provider, byName("ng-a"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeScaled))
		ng, ok := env.EKSAPI.GetNodeGroup("ng-a")
		Expect(ok).To(BeTrue())
		Expect(lo.FromPtr(ng.ScalingConfig.DesiredSize)).To(BeNumerically("==", 3))
	})
	It("should stop at the node group max size", func() {
		results := actuator.NewActuator(provider, byName("ng-full"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeAtCeiling))
		Expect(env.EKSAPI.UpdateNodegroupConfigBehavior.Calls()).To(BeZero())
	})
	It("should skip a node group busy with another update until it settles", func() {
		env.EKSAPI.UpdateNodegroupConfigBehavior.Error.Set(&ekstypes.ResourceInUseException{Message: lo.ToPtr("update in progress")})
		a := actuator.NewActuator(provider, byName("ng-a"), 10, env.UnavailableTargets)

		results := a.MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomePatchFailed))
		Expect(env.UnavailableTargets.IsUnavailable("ng-a")).To(BeTrue())

		results = a.MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeUnavailable))
		Expect(env.EKSAPI.UpdateNodegroupConfigBehavior.Calls()).To(Equal(1))
	})
	It("should retry a throttled update", func() {
		env.EKSAPI.UpdateNodegroupConfigBehavior.Error.Set(&smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"})
		results := actuator.NewActuator(provider, byName("ng-a"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomeScaled))
		Expect(results[0].To).To(BeNumerically("==", 3))
		Expect(env.EKSAPI.UpdateNodegroupConfigBehavior.Calls()).To(Equal(2))
		ng, ok := env.EKSAPI.GetNodeGroup("ng-a")
		Expect(ok).To(BeTrue())
		Expect(lo.FromPtr(ng.ScalingConfig.DesiredSize)).To(BeNumerically("==", 3))
		Expect(env.UnavailableTargets.IsUnavailable("ng-a")).To(BeFalse())
	})
	It("should give up after three throttled updates", func() {
		env.EKSAPI.UpdateNodegroupConfigBehavior.Error.Set(&smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}, fake.MaxCalls(0))
		results := actuator.NewActuator(provider, byName("ng-a"), 10, env.UnavailableTargets).MaybeScale(ctx, true)
		Expect(results[0].Outcome).To(Equal(actuator.OutcomePatchFailed))
		Expect(awserrors.IsThrottled(results[0].Err)).To(BeTrue())
		Expect(results[0].To).To(Equal(results[0].From))
		Expect(env.EKSAPI.UpdateNodegroupConfigBehavior.Calls()).To(Equal(3))
	})
})
