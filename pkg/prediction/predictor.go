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

// DefaultWindowSize is the number of ticks of history a trend is fitted over
const DefaultWindowSize = 5

type Prediction struct {
	CPU float64
	Mem float64
}

// ObserveAndPredict appends value to the window and extrapolates the next sample from the updated window
func ObserveAndPredict(w *Window, value float64) float64 {
	w.Append(value)
	return Extrapolate(w.Values())
}

// Predictor keeps independent CPU and memory windows. It is not safe for concurrent use; the control loop is its
// only writer.
type Predictor struct {
	cpu *Window
	mem *Window
}

func NewPredictor(size int) *Predictor {
	return &Predictor{
		cpu: NewWindow(size),
		mem: NewWindow(size),
	}
}

func (p *Predictor) ObserveAndPredict(cpu, mem float64) Prediction {
	return Prediction{
		CPU: ObserveAndPredict(p.cpu, cpu),
		Mem: ObserveAndPredict(p.mem, mem),
	}
}

func (p *Predictor) CPUHistory() []float64 {
	return p.cpu.Values()
}

func (p *Predictor) MemHistory() []float64 {
	return p.mem.Values()
}
