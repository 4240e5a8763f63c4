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
	"fmt"
	"strings"

	"github.com/awslabs/operatorpkg/serrors"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/aws/spotable-workloads/pkg/eligibility"
)

const (
	KindDeployment  = "Deployment"
	KindStatefulSet = "StatefulSet"

	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

var (
	validWorkloadKinds = sets.New(KindDeployment, KindStatefulSet)
	validOutputs       = sets.New(OutputText, OutputJSON, OutputYAML)
	validLogLevels     = sets.New("debug", "info", "error")
	validLogEncodings  = sets.New("console", "json")
)

func (o *Options) Validate() error {
	return multierr.Combine(
		o.validateWorkloadKinds(),
		o.validateRules(),
		o.validateDurations(),
		o.validateCounts(),
		o.validateEnum("output", o.Output, validOutputs),
		o.validateEnum("log-level", o.LogLevel, validLogLevels),
		o.validateEnum("log-encoding", o.LogEncoding, validLogEncodings),
	)
}

func (o *Options) validateWorkloadKinds() error {
	if len(o.WorkloadKinds) == 0 {
		return fmt.Errorf("missing field, workload-kinds")
	}
	var errs error
	for _, kind := range o.WorkloadKinds {
		if !validWorkloadKinds.Has(kind) {
			errs = multierr.Append(errs, serrors.Wrap(fmt.Errorf("unsupported workload kind"), "workload-kind", kind))
		}
	}
	return errs
}

// Unknown policy names are caught once the policy file is loaded
func (o *Options) validateRules() error {
	if o.Policy == "" {
		return fmt.Errorf("missing field, policy")
	}
	return eligibility.ValidateRuleIDs(o.Rules)
}

func (o *Options) validateDurations() error {
	var errs error
	if o.ReadinessThreshold < 0 {
		errs = multierr.Append(errs, fmt.Errorf("readiness-threshold cannot be negative"))
	}
	if o.MaxGracePeriod <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max-grace-period must be positive"))
	}
	return errs
}

func (o *Options) validateCounts() error {
	var errs error
	if o.Parallelism < 1 {
		errs = multierr.Append(errs, fmt.Errorf("parallelism must be at least 1"))
	}
	if o.FetchRetries < 1 {
		errs = multierr.Append(errs, fmt.Errorf("fetch-retries must be at least 1"))
	}
	if o.KubeClientQPS < 1 || o.KubeClientBurst < 1 {
		errs = multierr.Append(errs, fmt.Errorf("kube-client-qps and kube-client-burst must be at least 1"))
	}
	return errs
}

func (o *Options) validateEnum(name, value string, valid sets.Set[string]) error {
	if valid.Has(value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q, valid values are: [%s]", name, value, strings.Join(sets.List(valid), ", "))
}
