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

package logging

import (
	"context"
	"runtime/debug"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/operator/options"
	"github.com/aws/spotable-workloads/pkg/utils/functional"
)

const (
	Unknown = "unknown"
	Commit  = "commit"
)

func DefaultZapConfig(ctx context.Context) zap.Config {
	opts := options.FromContext(ctx)
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.LogLevel != "" {
		logLevel = lo.Must(zap.ParseAtomicLevel(opts.LogLevel))
	}
	return zap.Config{
		Level:             logLevel,
		Development:       false,
		DisableCaller:     opts.LogLevel != "debug",
		DisableStacktrace: true,
		Encoding:          lo.Ternary(opts.LogEncoding != "", opts.LogEncoding, "console"),
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "message",
			LevelKey:       "level",
			TimeKey:        "time",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      paths(opts.LogOutputPaths),
		ErrorOutputPaths: paths(opts.LogErrorOutputPaths),
	}
}

// NewLogger returns a logr.Logger that unwraps structured errors into key values
func NewLogger(ctx context.Context, component string) (logr.Logger, error) {
	logger, err := DefaultZapConfig(ctx).Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return serrors.NewLogger(zapr.NewLogger(WithCommit(logger).Named(component))), nil
}

// IntoContext builds the logger for the component and attaches it to the context
func IntoContext(ctx context.Context, component string) (context.Context, error) {
	logger, err := NewLogger(ctx, component)
	if err != nil {
		return ctx, err
	}
	log.SetLogger(logger)
	return log.IntoContext(ctx, logger), nil
}

func WithCommit(logger *zap.Logger) *zap.Logger {
	revision := Revision()
	if revision == Unknown {
		return logger
	}
	return logger.With(zap.String(Commit, revision))
}

// Revision returns the vcs revision the binary was built from
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Unknown
	}
	if s, found := lo.Find(info.Settings, func(s debug.BuildSetting) bool { return s.Key == "vcs.revision" }); found {
		return s.Value
	}
	return Unknown
}

func paths(value string) []string {
	return lo.Ternary(value == "", []string{"stderr"}, functional.SplitCommaSeparatedString(value))
}
