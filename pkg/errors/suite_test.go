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

package errors_test

import (
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	awserrors "github.com/nodescaler/nodescaler/pkg/errors"
)

func TestErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Errors")
}

var _ = Describe("Errors", func() {
	apiError := func(code string) error {
		return &smithy.GenericAPIError{Code: code, Message: "test"}
	}
	It("should classify wrapped api errors", func() {
		err := fmt.Errorf("updating node group, %w", apiError(awserrors.ResourceInUseCode))
		Expect(awserrors.IsResourceInUse(err)).To(BeTrue())
		Expect(awserrors.IsNotFound(err)).To(BeFalse())
	})
	DescribeTable("should match codes",
		func(check func(error) bool, code string, expected bool) {
			Expect(check(apiError(code))).To(Equal(expected))
		},
		Entry("not found", awserrors.IsNotFound, awserrors.ResourceNotFoundCode, true),
		Entry("access denied", awserrors.IsAccessDenied, awserrors.AccessDeniedExceptionCode, true),
		Entry("throttled", awserrors.IsThrottled, "ThrottlingException", true),
		Entry("unrelated", awserrors.IsAccessDenied, "ValidationException", false),
	)
	It("should not match errors without a code", func() {
		Expect(awserrors.IsNotFound(nil)).To(BeFalse())
		Expect(awserrors.IsNotFound(fmt.Errorf("boom"))).To(BeFalse())
	})
})
