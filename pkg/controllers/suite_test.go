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

package controllers_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/nodescaler/nodescaler/pkg/controllers"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/test"
)

var ctx context.Context
var env *test.Environment

func TestControllers(t *testing.T) {
	ctx = test.TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Controllers")
}

var _ = BeforeSuite(func() {
	env = test.NewEnvironment()
})

var _ = BeforeEach(func() {
	env.Reset()
})

var _ = Describe("NewControllers", func() {
	DescribeTable("should wire the scaling loop",
		func(fields test.OptionsFields) {
			ctx = options.ToContext(ctx, test.Options(fields))
			cs, err := controllers.NewControllers(ctx, env.Clock, env.KubeClient, metricsfake.NewSimpleClientset(), env.EKSAPI, env.UnavailableTargets)
			Expect(err).ToNot(HaveOccurred())
			Expect(cs).To(HaveLen(1))
		},
		Entry("for machine sets fed by prometheus", test.OptionsFields{}),
		Entry("for machine deployments fed by metrics-server", test.OptionsFields{
			TargetKind:      lo.ToPtr(string(options.TargetKindMachineDeployment)),
			TelemetrySource: lo.ToPtr(string(options.TelemetrySourceMetricsServer)),
		}),
		Entry("for selected managed node groups", test.OptionsFields{
			TargetKind:     lo.ToPtr(string(options.TargetKindEKSNodeGroup)),
			TargetName:     lo.ToPtr(""),
			TargetSelector: lo.ToPtr("role=worker"),
			ScalingPolicy:  lo.ToPtr(string(options.ScalingPolicyOverloadRatio)),
		}),
	)
	It("should fail without an EKS client for managed node groups", func() {
		ctx = options.ToContext(ctx, test.Options(test.OptionsFields{TargetKind: lo.ToPtr(string(options.TargetKindEKSNodeGroup))}))
		_, err := controllers.NewControllers(ctx, env.Clock, env.KubeClient, nil, nil, env.UnavailableTargets)
		Expect(err).To(HaveOccurred())
	})
	It("should fail with both a target name and a selector", func() {
		ctx = options.ToContext(ctx, test.Options(test.OptionsFields{TargetSelector: lo.ToPtr("role=worker")}))
		_, err := controllers.NewControllers(ctx, env.Clock, env.KubeClient, nil, nil, env.UnavailableTargets)
		Expect(err).To(HaveOccurred())
	})
	It("should fail on an unreadable prometheus CA bundle", func() {
		ctx = options.ToContext(ctx, test.Options(test.OptionsFields{PrometheusCAFile: lo.ToPtr("/nonexistent/ca.crt")}))
		_, err := controllers.NewControllers(ctx, env.Clock, env.KubeClient, nil, nil, env.UnavailableTargets)
		Expect(err).To(HaveOccurred())
	})
})
