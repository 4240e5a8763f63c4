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

package resources

import (
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/aws/spotable-workloads/pkg/cache"
	"github.com/aws/spotable-workloads/pkg/errors"
)

const (
	CPU              = "cpu"
	Memory           = "memory"
	EphemeralStorage = "ephemeral-storage"
)

var quantities = cache.NewQuantities()

// Parse normalizes a Kubernetes resource amount ("250m", "1.5", "512Mi", "1e3", ...) into a
// Quantity. Malformed amounts return a *errors.ParseError.
func Parse(amount string) (resource.Quantity, error) {
	return quantities.GetOrParse(amount, parse)
}

func parse(amount string) (resource.Quantity, error) {
	q, err := resource.ParseQuantity(strings.TrimSpace(amount))
	if err != nil {
		return resource.Quantity{}, &errors.ParseError{Amount: amount, Err: err}
	}
	return q, nil
}

// Cores returns the amount in integer millicores, rounding sub-millicore fractions up
func Cores(amount string) (int64, error) {
	q, err := Parse(amount)
	if err != nil {
		return 0, err
	}
	return q.MilliValue(), nil
}

// Bytes returns the amount in integer bytes, rounding fractional bytes up
func Bytes(amount string) (int64, error) {
	q, err := Parse(amount)
	if err != nil {
		return 0, err
	}
	return q.Value(), nil
}
