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

package aggregator

import (
	"context"
	"strconv"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/aws/spotable-workloads/pkg/utils/resources"
	"github.com/aws/spotable-workloads/pkg/workload"
)

const bytesPerMiB = 1024 * 1024

// Totals are exact sums of requests. CPU is kept in millicores and memory in bytes so that
// summing never accumulates rounding error.
type Totals struct {
	MilliCPU    int64 `json:"milliCPU"`
	MemoryBytes int64 `json:"memoryBytes"`
}

// Cores renders the CPU total in cores, e.g. "1.75"
func (t Totals) Cores() string {
	return strconv.FormatFloat(float64(t.MilliCPU)/1000, 'f', -1, 64)
}

// MemoryMiB renders the memory total in MiB, e.g. "1536" or "0.5"
func (t Totals) MemoryMiB() string {
	return strconv.FormatFloat(float64(t.MemoryBytes)/bytesPerMiB, 'f', -1, 64)
}

func (t Totals) IsZero() bool {
	return t.MilliCPU == 0 && t.MemoryBytes == 0
}

// Warning records a request that couldn't be parsed and so contributed nothing to the totals
type Warning struct {
	Workload  workload.Key `json:"workload"`
	Container string       `json:"container"`
	Resource  string       `json:"resource"`
	Amount    string       `json:"amount"`
	Message   string       `json:"message"`
	Err       error        `json:"-"`
}

// Aggregate sums the cpu and memory requests of every container of every workload, multiplied by the
// workload's replica count. Workloads and containers are visited in list order.
func Aggregate(ctx context.Context, workloads []*workload.Descriptor) (Totals, []Warning) {
	var totals Totals
	var warnings []Warning
	for _, w := range workloads {
		replicas := w.ReplicaCount()
		for _, c := range w.Template.Containers {
			if amount, ok := c.Requests[resources.CPU]; ok {
				millis, err := resources.Cores(amount)
				if err != nil {
					warnings = append(warnings, warn(ctx, w, c, resources.CPU, amount, err))
				}
				totals.MilliCPU += millis * replicas
			}
			if amount, ok := c.Requests[resources.Memory]; ok {
				bytes, err := resources.Bytes(amount)
				if err != nil {
					warnings = append(warnings, warn(ctx, w, c, resources.Memory, amount, err))
				}
				totals.MemoryBytes += bytes * replicas
			}
		}
	}
	return totals, warnings
}

func warn(ctx context.Context, w *workload.Descriptor, c workload.Container, resource, amount string, err error) Warning {
	log.FromContext(ctx).Error(err, "ignoring request", "workload", w.Key.String(), "container", c.Name, "resource", resource)
	return Warning{Workload: w.Key, Container: c.Name, Resource: resource, Amount: amount, Message: err.Error(), Err: err}
}
