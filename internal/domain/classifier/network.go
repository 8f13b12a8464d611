package classifier

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/okian/restock/internal/domain/model"
)

// Adam and loss constants.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
	probEpsilon = 1e-7
	inputWidth  = len(model.FeatureVector{})
)

var (
	errDiverged     = errors.New("training diverged")
	errNotSeparated = errors.New("bootstrap set not separated")
)

// network is a dense 3 -> hidden(ReLU) -> 1(sigmoid) model. All parameters
// live in one slice so the optimizer can treat them uniformly:
//
//	[ w1 (hidden*3) | b1 (hidden) | w2 (hidden) | b2 ]
type network struct {
	hidden int
	theta  []float64
}

func newNetwork(hidden int, rng *rand.Rand) *network {
	n := &network{hidden: hidden, theta: make([]float64, 5*hidden+1)}

	// Glorot uniform for both weight matrices, zero biases.
	limit1 := math.Sqrt(6.0 / float64(inputWidth+hidden))
	for i := 0; i < hidden*inputWidth; i++ {
		n.theta[i] = (rng.Float64()*2 - 1) * limit1
	}
	limit2 := math.Sqrt(6.0 / float64(hidden+1))
	for j := 0; j < hidden; j++ {
		n.theta[n.w2(j)] = (rng.Float64()*2 - 1) * limit2
	}
	return n
}

func (n *network) w1(j, k int) int { return j*inputWidth + k }
func (n *network) b1(j int) int    { return n.hidden*inputWidth + j }
func (n *network) w2(j int) int    { return n.hidden*(inputWidth+1) + j }
func (n *network) b2() int         { return n.hidden * (inputWidth + 2) }

// forward writes hidden activations into h and returns the output logit.
func (n *network) forward(x model.FeatureVector, h []float64) float64 {
	z := n.theta[n.b2()]
	for j := 0; j < n.hidden; j++ {
		pre := n.theta[n.b1(j)]
		for k := 0; k < inputWidth; k++ {
			pre += n.theta[n.w1(j, k)] * x[k]
		}
		h[j] = math.Max(0, pre)
		z += n.theta[n.w2(j)] * h[j]
	}
	return z
}

// predict returns the output probability. Safe for concurrent use.
func (n *network) predict(x model.FeatureVector) float64 {
	h := make([]float64, n.hidden)
	return sigmoid(n.forward(x, h))
}

// fit runs full-batch Adam over samples for the given number of epochs and
// returns the final mean binary cross-entropy.
func (n *network) fit(samples []Sample, epochs int, lr float64) (float64, error) {
	size := len(n.theta)
	grad := make([]float64, size)
	m := make([]float64, size)
	v := make([]float64, size)
	h := make([]float64, n.hidden)
	count := float64(len(samples))

	for epoch := 1; epoch <= epochs; epoch++ {
		clear(grad)
		for _, s := range samples {
			p := sigmoid(n.forward(s.Features, h))
			dz := (p - s.Label) / count
			grad[n.b2()] += dz
			for j := 0; j < n.hidden; j++ {
				grad[n.w2(j)] += dz * h[j]
				if h[j] <= 0 {
					continue
				}
				dpre := dz * n.theta[n.w2(j)]
				grad[n.b1(j)] += dpre
				for k := 0; k < inputWidth; k++ {
					grad[n.w1(j, k)] += dpre * s.Features[k]
				}
			}
		}

		c1 := 1 - math.Pow(adamBeta1, float64(epoch))
		c2 := 1 - math.Pow(adamBeta2, float64(epoch))
		for i := range n.theta {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*grad[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*grad[i]*grad[i]
			n.theta[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}

		if !finite(n.loss(samples, h)) {
			return math.NaN(), errDiverged
		}
	}

	for _, p := range n.theta {
		if !finite(p) {
			return math.NaN(), errDiverged
		}
	}
	return n.loss(samples, h), nil
}

func (n *network) loss(samples []Sample, h []float64) float64 {
	var total float64
	for _, s := range samples {
		p := math.Min(math.Max(sigmoid(n.forward(s.Features, h)), probEpsilon), 1-probEpsilon)
		total -= s.Label*math.Log(p) + (1-s.Label)*math.Log(1-p)
	}
	return total / float64(len(samples))
}

// separates reports whether every sample lands on its label's side of the
// decision threshold.
func (n *network) separates(samples []Sample) bool {
	for _, s := range samples {
		if (n.predict(s.Features) > Threshold) != (s.Label > Threshold) {
			return false
		}
	}
	return true
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
