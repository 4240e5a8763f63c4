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

package eligibility

import (
	"context"
	"fmt"

	"github.com/awslabs/operatorpkg/option"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/workload"
)

// Outcome is the verdict of a single rule, or of a full rule chain. The zero value is a Pass.
type Outcome struct {
	failed bool
	reason string
}

func Pass() Outcome {
	return Outcome{}
}

func Fail(reason string) Outcome {
	return Outcome{failed: true, reason: reason}
}

func Failf(format string, args ...any) Outcome {
	return Fail(fmt.Sprintf(format, args...))
}

func (o Outcome) Eligible() bool {
	return !o.failed
}

// Reason is empty for a passing outcome
func (o Outcome) Reason() string {
	return o.reason
}

func (o Outcome) String() string {
	if o.Eligible() {
		return "Pass"
	}
	return fmt.Sprintf("Fail(%s)", o.reason)
}

// Predicate inspects a workload and decides whether it may run on interruptible capacity.
type Predicate func(ctx context.Context, w *workload.Descriptor) Outcome

// Rule is a predicate with a stable identifier
type Rule struct {
	ID        string
	Predicate Predicate
}

type EngineOptions struct {
	// OnFail is called with the rule that rejected a workload
	OnFail func(ctx context.Context, w *workload.Descriptor, rule Rule, outcome Outcome)
}

func WithFailureHook(hook func(ctx context.Context, w *workload.Descriptor, rule Rule, outcome Outcome)) option.Function[EngineOptions] {
	return func(o *EngineOptions) {
		o.OnFail = hook
	}
}

// Engine runs ordered rule chains. It holds no per-workload state and is safe for concurrent use.
type Engine struct {
	opts *EngineOptions
}

func NewEngine(opts ...option.Function[EngineOptions]) *Engine {
	return &Engine{opts: option.Resolve(opts...)}
}

// Evaluate runs rules in order and returns the first failing outcome unchanged, or Pass when
// every rule passes. Rules after the first failure are not invoked.
func (e *Engine) Evaluate(ctx context.Context, w *workload.Descriptor, rules []Rule) Outcome {
	for _, rule := range rules {
		outcome := e.evaluate(ctx, w, rule)
		if outcome.Eligible() {
			continue
		}
		log.FromContext(ctx).V(1).Info("workload ineligible", "workload", w.Key.String(), "rule", rule.ID, "reason", outcome.Reason())
		if e.opts.OnFail != nil {
			e.opts.OnFail(ctx, w, rule, outcome)
		}
		return outcome
	}
	return Pass()
}

func (e *Engine) evaluate(ctx context.Context, w *workload.Descriptor, rule Rule) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.FromContext(ctx).Error(fmt.Errorf("%v", r), "rule panicked", "workload", w.Key.String(), "rule", rule.ID)
			outcome = Failf("rule %s could not be evaluated: %v", rule.ID, r)
		}
	}()
	return rule.Predicate(ctx, w)
}
