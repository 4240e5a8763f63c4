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
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
)

type PDBOptions struct {
	metav1.ObjectMeta
	Labels             map[string]string
	MinAvailable       *intstr.IntOrString
	MaxUnavailable     *intstr.IntOrString
	DisruptionsAllowed int32
	CurrentHealthy     int32
	DesiredHealthy     int32
	ExpectedPods       int32
}

// PodDisruptionBudget creates a budget selecting Labels with the observed status already filled in
func PodDisruptionBudget(overrides ...PDBOptions) *policyv1.PodDisruptionBudget {
	options := MustMerge(PDBOptions{}, overrides...)
	meta := ObjectMeta(options.ObjectMeta)
	if options.Labels == nil {
		options.Labels = map[string]string{"app": meta.Name}
	}
	return &policyv1.PodDisruptionBudget{
		ObjectMeta: meta,
		Spec: policyv1.PodDisruptionBudgetSpec{
			MinAvailable:   options.MinAvailable,
			MaxUnavailable: options.MaxUnavailable,
			Selector:       &metav1.LabelSelector{MatchLabels: options.Labels},
		},
		Status: policyv1.PodDisruptionBudgetStatus{
			DisruptionsAllowed: options.DisruptionsAllowed,
			CurrentHealthy:     options.CurrentHealthy,
			DesiredHealthy:     options.DesiredHealthy,
			ExpectedPods:       options.ExpectedPods,
		},
	}
}
