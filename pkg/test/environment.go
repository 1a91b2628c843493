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
	"time"

	"github.com/spf13/afero"
	clock "k8s.io/utils/clock/testing"
	"sigs.k8s.io/controller-runtime/pkg/client"
	crfake "sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/nodescaler/nodescaler/pkg/cache"
	"github.com/nodescaler/nodescaler/pkg/fake"
)

type Environment struct {
	// Mock
	Clock      *clock.FakeClock
	KubeClient client.Client
	Filesystem afero.Fs

	// API
	EKSAPI        *fake.EKSAPI
	PrometheusAPI *fake.PrometheusAPI

	// Telemetry
	TelemetryProvider *fake.TelemetryProvider

	// Cache
	UnavailableTargets *cache.UnavailableTargets
}

func NewEnvironment() *Environment {
	return &Environment{
		Clock:              clock.NewFakeClock(time.Now()),
		KubeClient:         crfake.NewClientBuilder().Build(),
		Filesystem:         afero.NewMemMapFs(),
		EKSAPI:             fake.NewEKSAPI(),
		PrometheusAPI:      fake.NewPrometheusAPI(),
		TelemetryProvider:  fake.NewTelemetryProvider(),
		UnavailableTargets: cache.NewUnavailableTargets(),
	}
}

// Reset must be called between tests. The kube client and filesystem are replaced, so anything holding them must be
// rebuilt afterwards.
func (env *Environment) Reset() {
	env.Clock.SetTime(time.Now())
	env.KubeClient = crfake.NewClientBuilder().Build()
	env.Filesystem = afero.NewMemMapFs()
	env.EKSAPI.Reset()
	env.PrometheusAPI.Reset()
	env.TelemetryProvider.Reset()
	env.UnavailableTargets.Flush()
}
