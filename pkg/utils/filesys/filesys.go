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

package filesys

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

type contextKey string

const (
	NodeScalerFS contextKey = "nodescaler/fs"
)

// Inject adds an afero.Fs that should be used by tests (only)
// to mock out the filesystem.
func Inject(ctx context.Context, override afero.Fs) context.Context {
	return context.WithValue(ctx, NodeScalerFS, override)
}

// For returns an afero.Fs, normally a pass-through to the host
// filesystem, except in the context of a test.
func For(ctx context.Context) afero.Fs {
	retval := ctx.Value(NodeScalerFS)
	if retval == nil {
		return afero.NewOsFs()
	}
	return retval.(afero.Fs)
}

// WriteLivenessMarker creates the file probed by the liveness check, along with any missing parent directories. The
// content is the time the process became ready; probes only test for existence.
func WriteLivenessMarker(ctx context.Context, path string, now time.Time) error {
	fs := For(ctx)
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating liveness directory, %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing liveness file, %w", err)
	}
	log.FromContext(ctx).WithValues("path", path).Info("wrote liveness file")
	return nil
}
