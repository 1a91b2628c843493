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

package operator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nodescaler/nodescaler/pkg/fake"
	"github.com/nodescaler/nodescaler/pkg/operator"
	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/test"
)

var ctx context.Context
var fakeSTSAPI *fake.STSAPI
var fakeIMDSAPI *fake.IMDSAPI

func TestOperator(t *testing.T) {
	ctx = test.TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Operator")
}

var _ = BeforeSuite(func() {
	fakeSTSAPI = &fake.STSAPI{}
	fakeIMDSAPI = &fake.IMDSAPI{}
})

var _ = BeforeEach(func() {
	fakeSTSAPI.Reset()
	fakeIMDSAPI.Reset()
})

var _ = Describe("Operator", func() {
	Context("ParseOptions", func() {
		It("should parse flags over defaults", func() {
			opts, err := operator.ParseOptions("--target-name=workers", "--max-replicas=4", "--check-interval=30s", "--scaling-policy=overload-ratio")
			Expect(err).ToNot(HaveOccurred())
			Expect(opts.TargetName).To(Equal("workers"))
			Expect(opts.MaxReplicas).To(Equal(4))
			Expect(opts.CheckInterval).To(Equal(30 * time.Second))
			Expect(opts.GetScalingPolicy()).To(Equal(options.ScalingPolicyOverloadRatio))
			Expect(opts.CPUThreshold).To(Equal(0.6))
		})
		It("should reject invalid options", func() {
			_, err := operator.ParseOptions("--target-name=workers", "--cpu-threshold=1.5")
			Expect(err).To(HaveOccurred())
		})
		It("should reject unknown flags", func() {
			_, err := operator.ParseOptions("--target-name=workers", "--replicas=3")
			Expect(err).To(HaveOccurred())
		})
	})
	Context("ResolveRegion", func() {
		It("should return the region from the metadata server", func() {
			region, err := operator.ResolveRegion(ctx, fakeIMDSAPI)
			Expect(err).ToNot(HaveOccurred())
			Expect(region).To(Equal(fake.DefaultRegion))
		})
		It("should fail on an empty region", func() {
			fakeIMDSAPI.GetRegionBehavior.Output.Set(&imds.GetRegionOutput{})
			_, err := operator.ResolveRegion(ctx, fakeIMDSAPI)
			Expect(err).To(HaveOccurred())
		})
		It("should propagate metadata server errors", func() {
			fakeIMDSAPI.GetRegionBehavior.Error.Set(errors.New("no route to host"), fake.MaxCalls(0))
			_, err := operator.ResolveRegion(ctx, fakeIMDSAPI)
			Expect(err).To(MatchError(ContainSubstring("no route to host")))
			_, err = operator.ResolveRegion(ctx, fakeIMDSAPI)
			Expect(err).To(HaveOccurred())
		})
	})
	Context("CheckAWSConnectivity", func() {
		It("should succeed with a valid identity", func() {
			Expect(operator.CheckAWSConnectivity(ctx, fakeSTSAPI)).To(Succeed())
			Expect(fakeSTSAPI.GetCallerIdentityBehavior.CalledWithInput.Len()).To(Equal(1))
			fakeSTSAPI.GetCallerIdentityBehavior.CalledWithInput.ForEach(func(input *sts.GetCallerIdentityInput) {
				Expect(input).ToNot(BeNil())
			})
		})
		It("should report rejected credentials", func() {
			fakeSTSAPI.GetCallerIdentityBehavior.Error.Set(&smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"})
			err := operator.CheckAWSConnectivity(ctx, fakeSTSAPI)
			Expect(err).To(MatchError(ContainSubstring("credentials were rejected")))
		})
		It("should report other failures", func() {
			fakeSTSAPI.GetCallerIdentityBehavior.Error.Set(errors.New("dial tcp: i/o timeout"))
			err := operator.CheckAWSConnectivity(ctx, fakeSTSAPI)
			Expect(err).To(MatchError(ContainSubstring("checking aws connectivity")))
		})
	})
})
