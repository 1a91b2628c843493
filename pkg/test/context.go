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
	"context"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// TestContextWithLogger returns a context carrying a development logger that writes through the test's output.
func TestContextWithLogger(t zaptest.TestingT) context.Context {
	return log.IntoContext(context.Background(), zapr.NewLogger(zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))))
}
