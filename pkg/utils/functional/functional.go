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

package functional

import (
	"strings"

	"github.com/samber/lo"
)

// SplitCommaSeparatedString splits a string by commas, removes whitespace and drops empty values
func SplitCommaSeparatedString(value string) []string {
	return lo.Compact(lo.Map(strings.Split(value, ","), func(s string, _ int) string { return strings.TrimSpace(s) }))
}
