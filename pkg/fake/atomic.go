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

package fake

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
)

// AtomicPtr holds a canned value shared between a test and a fake. Readers get a deep copy so that a fake handing
// the value to code under test can never race with the test mutating it.
type AtomicPtr[T any] struct {
	mu    sync.Mutex
	value *T
}

func (a *AtomicPtr[T]) Set(v *T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = v
}

func (a *AtomicPtr[T]) IsNil() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value == nil
}

func (a *AtomicPtr[T]) Clone() *T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return deepCopy(a.value)
}

func (a *AtomicPtr[T]) Reset() {
	a.Set(nil)
}

// deepCopy round trips through JSON. Only exported fields survive, which is all the SDK types carry.
func deepCopy[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encoding %T, %s", v, err))
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("decoding %T, %s", v, err))
	}
	return out
}

// AtomicError is returned by a fake for a bounded number of calls, once by default.
type AtomicError struct {
	mu        sync.Mutex
	err       error
	remaining int
}

func (e *AtomicError) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = nil
	e.remaining = 0
}

func (e *AtomicError) IsNil() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err == nil
}

// Get counts as a call: it consumes one of the remaining errors.
func (e *AtomicError) Get() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.remaining <= 0 {
		return nil
	}
	e.remaining--
	return e.err
}

func (e *AtomicError) Set(err error, opts ...AtomicErrorOption) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	e.remaining = 1
	for _, opt := range opts {
		opt(e)
	}
}

type AtomicErrorOption func(*AtomicError)

// MaxCalls bounds how often the error is returned. Zero or less returns it on every call.
func MaxCalls(n int) AtomicErrorOption {
	if n <= 0 {
		n = math.MaxInt
	}
	return func(e *AtomicError) {
		e.remaining = n
	}
}

// AtomicPtrSlice records the inputs a fake was called with. Values are copied on the way in and on the way out.
type AtomicPtrSlice[T any] struct {
	mu     sync.RWMutex
	values []*T
}

func (a *AtomicPtrSlice[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = nil
}

func (a *AtomicPtrSlice[T]) Add(v *T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values = append(a.values, deepCopy(v))
}

func (a *AtomicPtrSlice[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// ForEach calls fn with a copy of every recorded value, oldest first.
func (a *AtomicPtrSlice[T]) ForEach(fn func(*T)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, v := range a.values {
		fn(deepCopy(v))
	}
}
