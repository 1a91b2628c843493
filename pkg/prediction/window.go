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

package prediction

import "slices"

// Window is a fixed capacity series of samples kept in insertion order. Appending to a full window evicts the
// oldest sample.
type Window struct {
	capacity int
	values   []float64
}

func NewWindow(capacity int) *Window {
	return &Window{
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

func (w *Window) Append(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:len(w.values)-1]
	}
	w.values = append(w.values, v)
}

// Values returns a copy of the samples, oldest first
func (w *Window) Values() []float64 {
	return slices.Clone(w.values)
}
