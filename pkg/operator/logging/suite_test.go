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

package logging_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nodescaler/nodescaler/pkg/operator/logging"
	"github.com/nodescaler/nodescaler/pkg/test"
)

func TestLogging(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logging")
}

var _ = Describe("Logging", func() {
	Context("Config", func() {
		It("should log json at info without callers", func() {
			cfg, err := logging.Config(test.Options(test.OptionsFields{LogLevel: lo.ToPtr("info")}))
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Level.Level()).To(Equal(zapcore.InfoLevel))
			Expect(cfg.DisableCaller).To(BeTrue())
			Expect(cfg.DisableStacktrace).To(BeTrue())
			Expect(cfg.Encoding).To(Equal("json"))
			Expect(cfg.EncoderConfig.MessageKey).To(Equal("message"))
			Expect(cfg.OutputPaths).To(ConsistOf("stdout"))
			Expect(cfg.ErrorOutputPaths).To(ConsistOf("stderr"))
		})
		It("should report callers at debug", func() {
			cfg, err := logging.Config(test.Options(test.OptionsFields{LogLevel: lo.ToPtr("debug")}))
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Level.Level()).To(Equal(zapcore.DebugLevel))
			Expect(cfg.DisableCaller).To(BeFalse())
		})
		It("should default to info when no level is set", func() {
			opts := test.Options()
			opts.LogLevel = ""
			cfg, err := logging.Config(opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Level.Level()).To(Equal(zapcore.InfoLevel))
		})
		It("should split and trim output paths", func() {
			opts := test.Options()
			opts.LogOutputPaths = "stdout, /tmp/nodescaler.log,"
			opts.LogErrorOutputPaths = ""
			cfg, err := logging.Config(opts)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.OutputPaths).To(Equal([]string{"stdout", "/tmp/nodescaler.log"}))
			Expect(cfg.ErrorOutputPaths).To(Equal([]string{"stderr"}))
		})
		It("should reject an unknown level", func() {
			_, err := logging.Config(test.Options(test.OptionsFields{LogLevel: lo.ToPtr("loud")}))
			Expect(err).To(HaveOccurred())
		})
	})
	Context("NewLogger", func() {
		It("should name the logger after the component and tag the version", func() {
			core, logs := observer.New(zapcore.InfoLevel)
			logger, err := logging.NewLogger(test.Options(), "controller", "v1.2.3", zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))
			Expect(err).ToNot(HaveOccurred())

			logger.Info("started")
			Expect(logs.Len()).To(Equal(1))
			entry := logs.All()[0]
			Expect(entry.LoggerName).To(Equal("controller"))
			Expect(entry.Message).To(Equal("started"))
			Expect(entry.ContextMap()).To(HaveKeyWithValue("version", "v1.2.3"))
		})
		It("should honour the configured level", func() {
			logger, err := logging.NewLogger(test.Options(test.OptionsFields{LogLevel: lo.ToPtr("error")}), "controller", "v1.2.3")
			Expect(err).ToNot(HaveOccurred())
			Expect(logger.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
			Expect(logger.Core().Enabled(zapcore.ErrorLevel)).To(BeTrue())
		})
	})
})
