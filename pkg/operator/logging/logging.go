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

// Package logging builds the controller's structured logger from its options.
package logging

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nodescaler/nodescaler/pkg/operator/options"
	"github.com/nodescaler/nodescaler/pkg/utils/env"
)

// Config starts from zap's production profile: JSON with sampling and no stacktraces. Caller information is only
// worth its cost at debug level.
func Config(opts *options.Options) (zap.Config, error) {
	level, err := zap.ParseAtomicLevel(lo.Ternary(opts.LogLevel == "", "info", opts.LogLevel))
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level, %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.DisableCaller = level.Level() > zapcore.DebugLevel
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cfg.OutputPaths = paths(opts.LogOutputPaths, "stdout")
	cfg.ErrorOutputPaths = paths(opts.LogErrorOutputPaths, "stderr")
	return cfg, nil
}

// NewLogger returns the logger for one component of the binary. Every line carries the build version and, when the
// binary was built from a checkout, the commit.
func NewLogger(opts *options.Options, component, version string, zapOpts ...zap.Option) (*zap.Logger, error) {
	cfg, err := Config(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Build(zapOpts...)
	if err != nil {
		return nil, fmt.Errorf("building logger, %w", err)
	}
	fields := []zap.Field{zap.String("version", version)}
	if revision := env.GetRevision(); revision != "unknown" {
		fields = append(fields, zap.String("commit", revision))
	}
	return logger.Named(component).With(fields...), nil
}

func paths(csv, fallback string) []string {
	out := lo.Compact(lo.Map(strings.Split(csv, ","), func(p string, _ int) string { return strings.TrimSpace(p) }))
	return lo.Ternary(len(out) == 0, []string{fallback}, out)
}
