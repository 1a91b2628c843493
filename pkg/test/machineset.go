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

package test

import (
	"strings"

	"github.com/Pallinder/go-randomdata"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/nodescaler/nodescaler/pkg/providers/scalingtarget"
)

// MachineSet returns an OpenShift machine set in the machine API namespace. An empty name is replaced by a random one.
func MachineSet(name string, replicas int64, labels map[string]string) *unstructured.Unstructured {
	if name == "" {
		name = strings.ToLower(randomdata.SillyName())
	}
	ms := &unstructured.Unstructured{Object: map[string]any{
		"spec": map[string]any{
			"replicas": replicas,
		},
	}}
	ms.SetGroupVersionKind(scalingtarget.MachineSetGVK)
	ms.SetNamespace("openshift-machine-api")
	ms.SetName(name)
	ms.SetLabels(labels)
	return ms
}
