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

package workload

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindDeployment  Kind = "Deployment"
	KindStatefulSet Kind = "StatefulSet"
)

// DefaultTerminationGracePeriod is what the kubelet applies when a pod spec leaves the field unset
const DefaultTerminationGracePeriod = 30 * time.Second

// Key identifies a namespaced object
type Key struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Namespace, k.Name)
}

// Descriptor is the read-only view of a replicated workload that eligibility rules evaluate.
type Descriptor struct {
	Kind Kind
	Key
	// Replicas is nil when the workload doesn't declare a replica count
	Replicas    *int32
	Selector    map[string]string
	Labels      Metadata
	Annotations Metadata
	Template    PodTemplate
}

// ReplicaCount returns the declared replica count, treating an absent count as 1
func (d *Descriptor) ReplicaCount() int64 {
	if d.Replicas == nil {
		return 1
	}
	return int64(*d.Replicas)
}

type PodTemplate struct {
	Labels        Metadata
	Annotations   Metadata
	Containers    []Container
	RestartPolicy string
	// TerminationGracePeriod is nil when the template leaves it unset
	TerminationGracePeriod *time.Duration
}

// GracePeriod returns the effective termination grace period of the template
func (t PodTemplate) GracePeriod() time.Duration {
	if t.TerminationGracePeriod == nil {
		return DefaultTerminationGracePeriod
	}
	return *t.TerminationGracePeriod
}

type Container struct {
	Name string
	// Requests maps a resource name to its requested amount, e.g. "cpu": "500m"
	Requests map[string]string
}

type PodObservation struct {
	Key
	Conditions []Condition
}

type Condition struct {
	Type               string
	LastTransitionTime time.Time
}

// Condition returns the last transition time of the first condition of the given type
func (p *PodObservation) Condition(conditionType string) (time.Time, bool) {
	for _, c := range p.Conditions {
		if c.Type == conditionType {
			return c.LastTransitionTime, true
		}
	}
	return time.Time{}, false
}

type DisruptionBudget struct {
	Key
	Spec   BudgetSpec   `json:"spec"`
	Status BudgetStatus `json:"status"`
}

type BudgetSpec struct {
	MinAvailable               string            `json:"minAvailable,omitempty"`
	MaxUnavailable             string            `json:"maxUnavailable,omitempty"`
	Selector                   map[string]string `json:"selector,omitempty"`
	UnhealthyPodEvictionPolicy string            `json:"unhealthyPodEvictionPolicy,omitempty"`
}

type BudgetStatus struct {
	DisruptionsAllowed int32 `json:"disruptionsAllowed"`
	CurrentHealthy     int32 `json:"currentHealthy"`
	DesiredHealthy     int32 `json:"desiredHealthy"`
	ExpectedPods       int32 `json:"expectedPods"`
}
