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

package prediction_test

import (
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nodescaler/nodescaler/pkg/prediction"
)

func TestPrediction(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Prediction")
}

var _ = Describe("Window", func() {
	It("should start empty", func() {
		w := prediction.NewWindow(5)
		Expect(w.Values()).To(BeEmpty())
	})
	It("should evict the oldest sample once full", func() {
		w := prediction.NewWindow(5)
		for _, v := range []float64{1, 2, 3, 4, 5, 6} {
			w.Append(v)
		}
		Expect(w.Values()).To(Equal([]float64{2, 3, 4, 5, 6}))
	})
	It("should never exceed its capacity", func() {
		w := prediction.NewWindow(5)
		for i := range 100 {
			w.Append(float64(i))
			Expect(w.Values()).To(HaveLen(min(i+1, 5)))
		}
		Expect(w.Values()).To(Equal([]float64{95, 96, 97, 98, 99}))
	})
	It("should return a copy of its samples", func() {
		w := prediction.NewWindow(2)
		w.Append(0.1)
		values := w.Values()
		values[0] = 0.9
		Expect(w.Values()).To(Equal([]float64{0.1}))
	})
})

var _ = Describe("Extrapolate", func() {
	It("should predict 0 without samples", func() {
		Expect(prediction.Extrapolate(nil)).To(Equal(0.0))
	})
	DescribeTable("should predict the only sample",
		func(x float64) {
			Expect(prediction.Extrapolate([]float64{x})).To(Equal(x))
		},
		Entry("zero", 0.0),
		Entry("mid", 0.42),
		Entry("one", 1.0),
	)
	DescribeTable("should extrapolate the line through two points",
		func(a, b, expected float64) {
			Expect(prediction.Extrapolate([]float64{a, b})).To(BeNumerically("~", expected, 1e-9))
		},
		Entry("rising", 0.2, 0.3, 0.4),
		Entry("falling", 0.6, 0.5, 0.4),
		Entry("flat", 0.3, 0.3, 0.3),
		Entry("clamped above", 0.5, 0.9, 1.0),
		Entry("clamped below", 0.4, 0.1, 0.0),
	)
	It("should extrapolate a linear trend", func() {
		Expect(prediction.Extrapolate([]float64{0.50, 0.55, 0.60})).To(BeNumerically("~", 0.65, 1e-9))
	})
	It("should never predict above 1", func() {
		predicted := prediction.Extrapolate([]float64{0.9, 0.95, 0.99})
		Expect(predicted).To(BeNumerically("<=", 1.0))
		Expect(predicted).To(Equal(1.0))
	})
	It("should fit a noisy series by least squares", func() {
		// slope 0.04, intercept 0.315
		Expect(prediction.Extrapolate([]float64{0.3, 0.4, 0.35, 0.45})).To(BeNumerically("~", 0.475, 1e-9))
	})
	It("should fall back to the last sample when the fit is not finite", func() {
		Expect(prediction.Extrapolate([]float64{math.Inf(1), 0.5})).To(Equal(0.5))
	})
	It("should clamp non-finite samples to 0", func() {
		Expect(prediction.Extrapolate([]float64{math.NaN()})).To(Equal(0.0))
		Expect(prediction.Clamp(math.Inf(1))).To(Equal(0.0))
	})
})

var _ = Describe("Predictor", func() {
	It("should keep independent histories", func() {
		p := prediction.NewPredictor(prediction.DefaultWindowSize)
		p.ObserveAndPredict(0.1, 0.9)
		p.ObserveAndPredict(0.2, 0.8)
		Expect(p.CPUHistory()).To(Equal([]float64{0.1, 0.2}))
		Expect(p.MemHistory()).To(Equal([]float64{0.9, 0.8}))
	})
	It("should predict from the updated history", func() {
		p := prediction.NewPredictor(prediction.DefaultWindowSize)
		Expect(p.ObserveAndPredict(0.50, 0.50)).To(Equal(prediction.Prediction{CPU: 0.50, Mem: 0.50}))
		p.ObserveAndPredict(0.55, 0.55)
		predicted := p.ObserveAndPredict(0.60, 0.60)
		Expect(predicted.CPU).To(BeNumerically("~", 0.65, 1e-9))
		Expect(predicted.Mem).To(BeNumerically("~", 0.65, 1e-9))
	})
	It("should bound both histories to the window size", func() {
		p := prediction.NewPredictor(prediction.DefaultWindowSize)
		for i := range 12 {
			p.ObserveAndPredict(float64(i)/20, 0.5)
		}
		Expect(p.CPUHistory()).To(HaveLen(5))
		Expect(p.MemHistory()).To(HaveLen(5))
		Expect(p.CPUHistory()[0]).To(BeNumerically("~", 0.35, 1e-9))
	})
})
