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

package cache

import (
	"github.com/patrickmn/go-cache"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Quantities memoizes the result of parsing resource amounts. Scans are short lived, so
// entries never expire; the cache only saves re-parsing the handful of amounts
// ("100m", "256Mi", ...) that repeat across most workloads.
type Quantities struct {
	// key: amount as written in the pod template, value: quantityEntry
	cache *cache.Cache
}

type quantityEntry struct {
	quantity resource.Quantity
	err      error
}

func NewQuantities() *Quantities {
	return &Quantities{
		cache: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

// GetOrParse returns the cached result for amount, calling parse on a miss. Parse failures
// are cached as well so a malformed amount is only reported by parse once.
func (q *Quantities) GetOrParse(amount string, parse func(string) (resource.Quantity, error)) (resource.Quantity, error) {
	if entry, ok := q.cache.Get(amount); ok {
		e := entry.(quantityEntry)
		return e.quantity.DeepCopy(), e.err
	}
	quantity, err := parse(amount)
	q.cache.SetDefault(amount, quantityEntry{quantity: quantity.DeepCopy(), err: err})
	return quantity, err
}

// Len returns the number of distinct amounts that have been parsed
func (q *Quantities) Len() int {
	return q.cache.ItemCount()
}
