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

package errors

import (
	"errors"

	"github.com/aws/smithy-go"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	AccessDeniedCode          = "AccessDenied"
	AccessDeniedExceptionCode = "AccessDeniedException"
	ResourceInUseCode         = "ResourceInUseException"
	ResourceNotFoundCode      = "ResourceNotFoundException"
)

var (
	// This is not an exhaustive list, add to it as needed
	notFoundErrorCodes = sets.New[string](
		ResourceNotFoundCode,
	)
	accessDeniedErrorCodes = sets.New[string](
		AccessDeniedCode,
		AccessDeniedExceptionCode,
	)
	// resourceInUseErrorCodes signify that the node group is busy with another update and cannot accept a new one yet
	resourceInUseErrorCodes = sets.New[string](
		ResourceInUseCode,
	)
	throttlingErrorCodes = sets.New[string](
		"Throttling",
		"ThrottlingException",
		"TooManyRequestsException",
	)
)

// IsNotFound returns true if the err is an AWS error (even if it's
// wrapped) and is a known to mean "not found" (as opposed to a more
// serious or unexpected error)
func IsNotFound(err error) bool {
	return hasCode(err, notFoundErrorCodes)
}

// IsAccessDenied returns true if the error is an AWS error (even if it's
// wrapped) and is known to mean "access denied" (as opposed to a more
// serious or unexpected error)
func IsAccessDenied(err error) bool {
	return hasCode(err, accessDeniedErrorCodes)
}

// IsResourceInUse returns true if the node group rejected an update because a previous one is still in progress
func IsResourceInUse(err error) bool {
	return hasCode(err, resourceInUseErrorCodes)
}

func IsThrottled(err error) bool {
	return hasCode(err, throttlingErrorCodes)
}

func hasCode(err error, codes sets.Set[string]) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return codes.Has(apiErr.ErrorCode())
	}
	return false
}
