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

	"github.com/samber/lo"

	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/operator/options"
)

type OptionsFields struct {
	ExcludeNamespaces      []string
	WorkloadKinds          []string
	Policy                 *string
	PolicyFile             *string
	Rules                  []string
	ReadinessThreshold     *time.Duration
	MaxGracePeriod         *time.Duration
	Parallelism            *int
	FetchRetries           *int
	Output                 *string
	AuditDisruptionBudgets *bool
	MetricsFile            *string
	LogLevel               *string
	LogEncoding            *string
	LogOutputPaths         *string
}

func Options(overrides ...OptionsFields) *options.Options {
	opts := MustMerge(OptionsFields{}, overrides...)
	return &options.Options{
		KubeClientQPS:          50,
		KubeClientBurst:        100,
		ExcludeNamespaces:      opts.ExcludeNamespaces,
		WorkloadKinds:          lo.Ternary(len(opts.WorkloadKinds) > 0, opts.WorkloadKinds, []string{options.KindDeployment}),
		Policy:                 lo.FromPtrOr(opts.Policy, eligibility.StandardPolicy),
		PolicyFile:             lo.FromPtrOr(opts.PolicyFile, ""),
		Rules:                  opts.Rules,
		ReadinessThreshold:     lo.FromPtrOr(opts.ReadinessThreshold, 0),
		MaxGracePeriod:         lo.FromPtrOr(opts.MaxGracePeriod, eligibility.DefaultMaxGracePeriod),
		Parallelism:            lo.FromPtrOr(opts.Parallelism, 1),
		FetchRetries:           lo.FromPtrOr(opts.FetchRetries, 3),
		Output:                 lo.FromPtrOr(opts.Output, options.OutputText),
		AuditDisruptionBudgets: lo.FromPtrOr(opts.AuditDisruptionBudgets, true),
		MetricsFile:            lo.FromPtrOr(opts.MetricsFile, ""),
		LogLevel:               lo.FromPtrOr(opts.LogLevel, "info"),
		LogEncoding:            lo.FromPtrOr(opts.LogEncoding, "console"),
		LogOutputPaths:         lo.FromPtrOr(opts.LogOutputPaths, "stderr"),
		LogErrorOutputPaths:    "stderr",
	}
}
