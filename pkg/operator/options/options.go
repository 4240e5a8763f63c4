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

package options

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/aws/spotable-workloads/pkg/eligibility"
	"github.com/aws/spotable-workloads/pkg/utils/env"
)

type optionsKey struct{}

// Options for running this binary
type Options struct {
	Kubeconfig      string
	Context         string
	KubeClientQPS   int
	KubeClientBurst int

	ExcludeNamespaces      []string
	Interactive            bool
	WorkloadKinds          []string
	Policy                 string
	PolicyFile             string
	Rules                  []string
	ReadinessThreshold     time.Duration
	MaxGracePeriod         time.Duration
	Parallelism            int
	FetchRetries           int
	Output                 string
	AuditDisruptionBudgets bool
	MetricsFile            string

	LogLevel            string
	LogEncoding         string
	LogOutputPaths      string
	LogErrorOutputPaths string
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Kubeconfig, "kubeconfig", env.WithDefaultString("KUBECONFIG", ""), "Path to a kubeconfig file. Defaults to the client-go loading rules")
	fs.StringVar(&o.Context, "context", env.WithDefaultString("KUBE_CONTEXT", ""), "The kubeconfig context to scan. Defaults to the current context")
	fs.IntVar(&o.KubeClientQPS, "kube-client-qps", env.WithDefaultInt("KUBE_CLIENT_QPS", 50), "The smoothed rate of qps to kube-apiserver")
	fs.IntVar(&o.KubeClientBurst, "kube-client-burst", env.WithDefaultInt("KUBE_CLIENT_BURST", 100), "The maximum allowed burst of queries to the kube-apiserver")

	fs.StringSliceVar(&o.ExcludeNamespaces, "exclude-namespaces", env.WithDefaultStringSlice("EXCLUDE_NAMESPACES", nil), "Comma separated namespaces to skip. kube-system is always skipped")
	fs.BoolVar(&o.Interactive, "interactive", env.WithDefaultBool("INTERACTIVE", false), "Prompt for namespaces to exclude when stdin is a terminal")
	fs.StringSliceVar(&o.WorkloadKinds, "workload-kinds", env.WithDefaultStringSlice("WORKLOAD_KINDS", []string{string(KindDeployment)}), "Workload kinds to scan. Can be any of 'Deployment' or 'StatefulSet'")
	fs.StringVar(&o.Policy, "policy", env.WithDefaultString("POLICY", eligibility.StandardPolicy), "The named eligibility policy to evaluate workloads against")
	fs.StringVar(&o.PolicyFile, "policy-file", env.WithDefaultString("POLICY_FILE", ""), "Optional YAML, JSON or TOML file with additional named policies")
	fs.StringSliceVar(&o.Rules, "rules", env.WithDefaultStringSlice("RULES", nil), "Comma separated rule IDs evaluated in order instead of the policy's rules")
	fs.DurationVar(&o.ReadinessThreshold, "readiness-threshold", env.WithDefaultDuration("READINESS_THRESHOLD", 0), "Overrides the policy's maximum time a pod may take from scheduled to ready")
	fs.DurationVar(&o.MaxGracePeriod, "max-grace-period", env.WithDefaultDuration("MAX_GRACE_PERIOD", eligibility.DefaultMaxGracePeriod), "The longest terminationGracePeriod an eligible workload may declare, unless the policy sets one")
	fs.IntVar(&o.Parallelism, "parallelism", env.WithDefaultInt("PARALLELISM", 1), "The number of workloads evaluated concurrently")
	fs.IntVar(&o.FetchRetries, "fetch-retries", env.WithDefaultInt("FETCH_RETRIES", 3), "The number of attempts made for each list call to the kube-apiserver")
	fs.StringVar(&o.Output, "output", env.WithDefaultString("OUTPUT", OutputText), "Report format. Can be one of 'text', 'json' or 'yaml'")
	fs.BoolVar(&o.AuditDisruptionBudgets, "audit-disruption-budgets", env.WithDefaultBool("AUDIT_DISRUPTION_BUDGETS", true), "Report PodDisruptionBudgets that currently allow no disruptions")
	fs.StringVar(&o.MetricsFile, "metrics-file", env.WithDefaultString("METRICS_FILE", ""), "Optional path to write scan metrics to in the prometheus text format")

	fs.StringVar(&o.LogLevel, "log-level", env.WithDefaultString("LOG_LEVEL", "info"), "Log verbosity level. Can be one of 'debug', 'info', or 'error'")
	fs.StringVar(&o.LogEncoding, "log-encoding", env.WithDefaultString("LOG_ENCODING", "console"), "Log encoding. Can be one of 'console' or 'json'")
	fs.StringVar(&o.LogOutputPaths, "log-output-paths", env.WithDefaultString("LOG_OUTPUT_PATHS", "stderr"), "Optional comma separated paths for directing log output")
	fs.StringVar(&o.LogErrorOutputPaths, "log-error-output-paths", env.WithDefaultString("LOG_ERROR_OUTPUT_PATHS", "stderr"), "Optional comma separated paths for logging error output")
}

func (o *Options) Parse(fs *pflag.FlagSet, args ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing flags, %w", err)
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("validating cli flags / env vars, %w", err)
	}
	return nil
}

// AddExcludedNamespaces appends namespaces, as typed at the interactive prompt, to the exclusion list
func (o *Options) AddExcludedNamespaces(input string) {
	o.ExcludeNamespaces = append(o.ExcludeNamespaces, strings.Fields(input)...)
}

func (o *Options) ToContext(ctx context.Context) context.Context {
	return ToContext(ctx, o)
}

func ToContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

func FromContext(ctx context.Context) *Options {
	retval := ctx.Value(optionsKey{})
	if retval == nil {
		// This is a developer error if this happens, so we should panic
		panic("options doesn't exist in context")
	}
	return retval.(*Options)
}
