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

// Metadata is a set of labels or annotations. A nil Metadata behaves like an empty one, and
// a key that is absent is distinct from a key that is present with an empty value.
type Metadata map[string]string

// Lookup returns the value stored under key and whether the key was present
func (m Metadata) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key]
	return v, ok
}

func (m Metadata) Has(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Equals returns true only if the key is present and holds exactly value
func (m Metadata) Equals(key, value string) bool {
	v, ok := m.Lookup(key)
	return ok && v == value
}
