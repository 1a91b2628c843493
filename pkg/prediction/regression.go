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

package prediction

import (
	"math"

	"github.com/samber/lo"
)

// Extrapolate fits value = intercept + slope*index by ordinary least squares over the 0-based sample indices and
// evaluates the fit at the next index, len(values). The result is clamped to [0,1].
func Extrapolate(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return Clamp(values[0])
	}
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n
	predicted := intercept + slope*n
	if !finite(predicted) {
		predicted = lo.LastOrEmpty(values)
	}
	return Clamp(predicted)
}

// Clamp bounds v to [0,1]. Non-finite values clamp to 0.
func Clamp(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
