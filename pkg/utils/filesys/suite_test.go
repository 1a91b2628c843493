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

package filesys_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/nodescaler/nodescaler/pkg/test"
	"github.com/nodescaler/nodescaler/pkg/utils/filesys"
)

var ctx context.Context
var env *test.Environment

func TestFilesys(t *testing.T) {
	ctx = test.TestContextWithLogger(t)
	RegisterFailHandler(Fail)
	RunSpecs(t, "Filesys")
}

var _ = BeforeSuite(func() {
	env = test.NewEnvironment()
})

var _ = Describe("Liveness", func() {
	var fs afero.Fs
	var fsCtx context.Context

	BeforeEach(func() {
		env.Reset()
		fs = env.Filesystem
		fsCtx = filesys.Inject(ctx, fs)
	})
	It("should use the injected filesystem", func() {
		Expect(filesys.For(fsCtx)).To(BeIdenticalTo(fs))
		Expect(filesys.For(ctx)).To(BeAssignableToTypeOf(&afero.OsFs{}))
	})
	It("should write the marker file", func() {
		now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
		Expect(filesys.WriteLivenessMarker(fsCtx, "/tmp/healthy", now)).To(Succeed())
		content, err := afero.ReadFile(fs, "/tmp/healthy")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("2024-03-01T12:00:00Z\n"))
	})
	It("should create missing parent directories", func() {
		Expect(filesys.WriteLivenessMarker(fsCtx, "/var/run/nodescaler/healthy", time.Now())).To(Succeed())
		exists, err := afero.Exists(fs, "/var/run/nodescaler/healthy")
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeTrue())
	})
	It("should overwrite a marker left by a previous run", func() {
		Expect(afero.WriteFile(fs, "/tmp/healthy", []byte("stale"), 0o644)).To(Succeed())
		Expect(filesys.WriteLivenessMarker(fsCtx, "/tmp/healthy", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))).To(Succeed())
		content, err := afero.ReadFile(fs, "/tmp/healthy")
		Expect(err).ToNot(HaveOccurred())
		Expect(string(content)).To(Equal("2024-03-01T00:00:00Z\n"))
	})
	It("should fail on a read-only filesystem", func() {
		Expect(filesys.WriteLivenessMarker(filesys.Inject(ctx, afero.NewReadOnlyFs(fs)), "/tmp/healthy", time.Now())).ToNot(Succeed())
	})
})
