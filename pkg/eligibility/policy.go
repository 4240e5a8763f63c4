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
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"
)

const (
	StandardPolicy  = "standard"
	ReadinessPolicy = "readiness"
	StrictPolicy    = "strict"
)

// BaseRules are the checks every built-in policy starts with, in evaluation order
var BaseRules = []string{
	MinimumReplicasRule,
	NotEvictionProtectedRule,
	SafeToEvictLabelRule,
	NoScaleDownRestrictionRule,
	BoundedGracePeriodRule,
	NoEphemeralStorageDemandRule,
}

// Policy is a named, ordered list of rule IDs. Durations are optional and use
// time.ParseDuration syntax.
type Policy struct {
	Name               string   `json:"name" toml:"name"`
	Rules              []string `json:"rules" toml:"rules"`
	ReadinessThreshold string   `json:"readinessThreshold,omitempty" toml:"readinessThreshold,omitempty"`
	MaxGracePeriod     string   `json:"maxGracePeriod,omitempty" toml:"maxGracePeriod,omitempty"`
}

// PolicyFile is the document accepted by Registry.LoadFile
type PolicyFile struct {
	Policies []Policy `json:"policies" toml:"policies"`
}

// Settings are the run-time inputs a policy is resolved against
type Settings struct {
	// Rules replaces the policy's rule list when non-empty
	Rules []string
	// ReadinessThreshold overrides the policy's threshold when positive
	ReadinessThreshold time.Duration
	// MaxGracePeriod applies when the policy doesn't set its own
	MaxGracePeriod time.Duration
	Pods           PodLister
}

// Resolved is a policy bound to concrete rules
type Resolved struct {
	Name               string
	RuleIDs            []string
	ReadinessThreshold time.Duration
	MaxGracePeriod     time.Duration
	Rules              []Rule `hash:"ignore"`
}

// Hash fingerprints the effective rule chain so reports from different runs can be compared
func (r Resolved) Hash() string {
	return strconv.FormatUint(lo.Must(hashstructure.Hash(r, hashstructure.FormatV2, nil)), 10)
}

type factory func(r *Resolved, s Settings) Rule

var factories = map[string]factory{
	MinimumReplicasRule:          func(*Resolved, Settings) Rule { return MinimumReplicas() },
	NotEvictionProtectedRule:     func(*Resolved, Settings) Rule { return NotEvictionProtected() },
	SafeToEvictLabelRule:         func(*Resolved, Settings) Rule { return SafeToEvictLabel() },
	NoScaleDownRestrictionRule:   func(*Resolved, Settings) Rule { return NoScaleDownRestriction() },
	BoundedGracePeriodRule:       func(r *Resolved, _ Settings) Rule { return BoundedGracePeriod(r.MaxGracePeriod) },
	NoEphemeralStorageDemandRule: func(*Resolved, Settings) Rule { return NoEphemeralStorageDemand() },
	FastReadinessRule:            func(r *Resolved, s Settings) Rule { return FastReadiness(s.Pods, r.ReadinessThreshold) },
	StatelessRule:                func(*Resolved, Settings) Rule { return Stateless() },
	NoDoNotDisruptRule:           func(*Resolved, Settings) Rule { return NoDoNotDisrupt() },
}

// RuleIDs returns every known rule ID in sorted order
func RuleIDs() []string {
	ids := lo.Keys(factories)
	sort.Strings(ids)
	return ids
}

// Registry holds the policies a scan may select by name
type Registry struct {
	policies map[string]Policy
}

func NewRegistry() *Registry {
	r := &Registry{policies: map[string]Policy{}}
	lo.Must0(r.Register(Policy{Name: StandardPolicy, Rules: BaseRules}))
	lo.Must0(r.Register(Policy{Name: ReadinessPolicy, Rules: append(slices.Clone(BaseRules), FastReadinessRule), ReadinessThreshold: "10m"}))
	lo.Must0(r.Register(Policy{Name: StrictPolicy, Rules: append(slices.Clone(BaseRules), FastReadinessRule, StatelessRule), ReadinessThreshold: "2m"}))
	return r
}

// Register adds or replaces a policy after validating it
func (r *Registry) Register(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.policies[p.Name] = p
	return nil
}

func (r *Registry) Get(name string) (Policy, error) {
	p, ok := r.policies[name]
	if !ok {
		return Policy{}, serrors.Wrap(fmt.Errorf("unknown policy"), "policy", name, "known", r.Names())
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := lo.Keys(r.policies)
	sort.Strings(names)
	return names
}

// LoadFile registers every policy in a YAML, JSON or TOML file, chosen by extension
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file, %w", err)
	}
	file := PolicyFile{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".yaml", ".yml", ".json":
		err = yaml.UnmarshalStrict(data, &file)
	default:
		return serrors.Wrap(fmt.Errorf("unsupported policy file extension"), "path", path)
	}
	if err != nil {
		return serrors.Wrap(fmt.Errorf("decoding policy file, %w", err), "path", path)
	}
	var errs error
	for _, p := range file.Policies {
		errs = multierr.Append(errs, r.Register(p))
	}
	return errs
}

func (p Policy) Validate() error {
	var errs error
	if p.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("policy name must not be empty"))
	}
	if len(p.Rules) == 0 {
		errs = multierr.Append(errs, serrors.Wrap(fmt.Errorf("policy must list at least one rule"), "policy", p.Name))
	}
	errs = multierr.Append(errs, ValidateRuleIDs(p.Rules))
	if _, err := parseOptionalDuration(p.ReadinessThreshold); err != nil {
		errs = multierr.Append(errs, serrors.Wrap(fmt.Errorf("invalid readinessThreshold, %w", err), "policy", p.Name))
	}
	if _, err := parseOptionalDuration(p.MaxGracePeriod); err != nil {
		errs = multierr.Append(errs, serrors.Wrap(fmt.Errorf("invalid maxGracePeriod, %w", err), "policy", p.Name))
	}
	return errs
}

// ValidateRuleIDs returns an error naming every unknown rule ID
func ValidateRuleIDs(ids []string) error {
	var errs error
	for _, id := range ids {
		if _, ok := factories[id]; !ok {
			errs = multierr.Append(errs, serrors.Wrap(fmt.Errorf("unknown rule"), "rule", id, "known", RuleIDs()))
		}
	}
	return errs
}

// Resolve binds the policy to concrete rules. Readiness checks need a pod lister.
func (p Policy) Resolve(s Settings) (Resolved, error) {
	resolved := Resolved{
		Name:               p.Name,
		RuleIDs:            lo.Ternary(len(s.Rules) > 0, s.Rules, p.Rules),
		ReadinessThreshold: DefaultReadinessThreshold,
		MaxGracePeriod:     lo.Ternary(s.MaxGracePeriod > 0, s.MaxGracePeriod, DefaultMaxGracePeriod),
	}
	if err := ValidateRuleIDs(resolved.RuleIDs); err != nil {
		return Resolved{}, err
	}
	if d, err := parseOptionalDuration(p.ReadinessThreshold); err != nil {
		return Resolved{}, err
	} else if d > 0 {
		resolved.ReadinessThreshold = d
	}
	if s.ReadinessThreshold > 0 {
		resolved.ReadinessThreshold = s.ReadinessThreshold
	}
	if d, err := parseOptionalDuration(p.MaxGracePeriod); err != nil {
		return Resolved{}, err
	} else if d > 0 {
		resolved.MaxGracePeriod = d
	}
	if lo.Contains(resolved.RuleIDs, FastReadinessRule) && s.Pods == nil {
		return Resolved{}, serrors.Wrap(fmt.Errorf("rule requires a pod lister"), "rule", FastReadinessRule)
	}
	resolved.Rules = lo.Map(resolved.RuleIDs, func(id string, _ int) Rule {
		return factories[id](&resolved, s)
	})
	return resolved, nil
}

func parseOptionalDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", value)
	}
	return d, nil
}
