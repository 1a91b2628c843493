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
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"

	awserrors "github.com/nodescaler/nodescaler/pkg/errors"
)

// Target is a node group whose replica count the controller grows.
type Target struct {
	Name      string
	Namespace string
	Labels    map[string]string
	Replicas  int32
	// MaxReplicas is the ceiling declared by the node group itself, nil when it declares none.
	MaxReplicas *int32
	// ResourceVersion identifies the state Replicas was read from. Writes are rejected once it is stale.
	ResourceVersion string

	object *unstructured.Unstructured
}

func (t *Target) String() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "/" + t.Name
}

// Provider reads and writes the replica count of node groups of a single kind.
type Provider interface {
	Get(ctx context.Context, name string) (*Target, error)
	// List returns the node groups matching the selector, sorted by name.
	List(ctx context.Context, selector labels.Selector) ([]*Target, error)
	// SetReplicas writes the replica count. It fails with a conflict when the node group changed since the target
	// was read.
	SetReplicas(ctx context.Context, target *Target, replicas int32) error
}

type ConflictError struct {
	Target   string
	Expected string
	Actual   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("node group %s was modified concurrently, read version %q but found %q", e.Target, e.Expected, e.Actual)
}

// IsConflict returns true if the write was rejected because the target was modified after it was read
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var conflict *ConflictError
	return errors.As(err, &conflict) || apierrors.IsConflict(err)
}

func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return apierrors.IsNotFound(err) || awserrors.IsNotFound(err)
}
