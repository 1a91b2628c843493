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

package actuator

import (
	"fmt"

	"k8s.io/apimachinery/pkg/labels"
)

// Selector picks the scaling targets of a tick, either a single node group by name or every node group matching a
// label selector.
type Selector struct {
	Name   string
	Labels labels.Selector
}

func NewSelector(name, selector string) (Selector, error) {
	switch {
	case name != "" && selector != "":
		return Selector{}, fmt.Errorf("target name and target selector are mutually exclusive")
	case name != "":
		return Selector{Name: name}, nil
	case selector != "":
		parsed, err := labels.Parse(selector)
		if err != nil {
			return Selector{}, fmt.Errorf("parsing target selector %q, %w", selector, err)
		}
		return Selector{Labels: parsed}, nil
	default:
		return Selector{}, fmt.Errorf("one of target name or target selector is required")
	}
}

func (s Selector) IsName() bool {
	return s.Name != ""
}

func (s Selector) String() string {
	if s.IsName() {
		return s.Name
	}
	return s.Labels.String()
}
