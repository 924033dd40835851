package abnormality

import (
	"errors"
	"math"
	"sort"
)

const (
	nStates   = 2
	nFeatures = 3
	varFloor  = 1e-3
)

var errDegenerateFit = errors.New("abnormality: degenerate hmm fit")

// gaussianHMM is a two-state hidden Markov model with diagonal Gaussian
// emissions, fitted by Baum-Welch from a fixed initialisation so that the
// same observations always give the same parameters.
type gaussianHMM struct {
	pi    [nStates]float64
	trans [nStates][nStates]float64
	mean  [nStates][nFeatures]float64
	vars  [nStates][nFeatures]float64
}

// standardize returns a copy with every feature column z-scored.
func standardize(obs [][nFeatures]float64) [][nFeatures]float64 {
	n := float64(len(obs))
	var mu, sd [nFeatures]float64
	for _, o := range obs {
		for k := range o {
			mu[k] += o[k]
		}
	}
	for k := range mu {
		mu[k] /= n
	}
	for _, o := range obs {
		for k := range o {
			sd[k] += (o[k] - mu[k]) * (o[k] - mu[k])
		}
	}
	for k := range sd {
		sd[k] = math.Sqrt(sd[k] / n)
		if sd[k] == 0 {
			sd[k] = 1
		}
	}
	out := make([][nFeatures]float64, len(obs))
	for i, o := range obs {
		for k := range o {
			out[i][k] = (o[k] - mu[k]) / sd[k]
		}
	}
	return out
}

// initHMM splits observations by |TAR| into a calm half and a violent half.
func initHMM(x [][nFeatures]float64) *gaussianHMM {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return math.Abs(x[idx[a]][2]) < math.Abs(x[idx[b]][2])
	})

	h := &gaussianHMM{
		pi:    [nStates]float64{0.5, 0.5},
		trans: [nStates][nStates]float64{{0.9, 0.1}, {0.1, 0.9}},
	}
	half := len(idx) / 2
	groups := [nStates][]int{idx[:half], idx[half:]}
	for s, g := range groups {
		for _, i := range g {
			for k := 0; k < nFeatures; k++ {
				h.mean[s][k] += x[i][k]
			}
		}
		for k := 0; k < nFeatures; k++ {
			h.mean[s][k] /= float64(len(g))
		}
		for _, i := range g {
			for k := 0; k < nFeatures; k++ {
				d := x[i][k] - h.mean[s][k]
				h.vars[s][k] += d * d
			}
		}
		for k := 0; k < nFeatures; k++ {
			h.vars[s][k] = math.Max(h.vars[s][k]/float64(len(g)), varFloor)
		}
	}
	return h
}

func (h *gaussianHMM) logEmission(s int, o [nFeatures]float64) float64 {
	lp := 0.0
	for k := 0; k < nFeatures; k++ {
		d := o[k] - h.mean[s][k]
		lp += -0.5*math.Log(2*math.Pi*h.vars[s][k]) - d*d/(2*h.vars[s][k])
	}
	return lp
}

// posteriors runs the scaled forward-backward pass and returns per-step
// state posteriors, pairwise transition posteriors and the log likelihood.
func (h *gaussianHMM) posteriors(x [][nFeatures]float64) ([][nStates]float64, [][nStates][nStates]float64, float64) {
	T := len(x)
	b := make([][nStates]float64, T)
	logScale := make([]float64, T)
	for t, o := range x {
		l0, l1 := h.logEmission(0, o), h.logEmission(1, o)
		m := math.Max(l0, l1)
		b[t] = [nStates]float64{math.Exp(l0 - m), math.Exp(l1 - m)}
		logScale[t] = m
	}

	alpha := make([][nStates]float64, T)
	c := make([]float64, T)
	for s := 0; s < nStates; s++ {
		alpha[0][s] = h.pi[s] * b[0][s]
		c[0] += alpha[0][s]
	}
	for s := range alpha[0] {
		alpha[0][s] /= c[0]
	}
	for t := 1; t < T; t++ {
		for j := 0; j < nStates; j++ {
			sum := 0.0
			for i := 0; i < nStates; i++ {
				sum += alpha[t-1][i] * h.trans[i][j]
			}
			alpha[t][j] = sum * b[t][j]
			c[t] += alpha[t][j]
		}
		for j := range alpha[t] {
			alpha[t][j] /= c[t]
		}
	}

	beta := make([][nStates]float64, T)
	beta[T-1] = [nStates]float64{1, 1}
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < nStates; i++ {
			sum := 0.0
			for j := 0; j < nStates; j++ {
				sum += h.trans[i][j] * b[t+1][j] * beta[t+1][j]
			}
			beta[t][i] = sum / c[t+1]
		}
	}

	gamma := make([][nStates]float64, T)
	for t := 0; t < T; t++ {
		norm := 0.0
		for s := 0; s < nStates; s++ {
			gamma[t][s] = alpha[t][s] * beta[t][s]
			norm += gamma[t][s]
		}
		for s := range gamma[t] {
			gamma[t][s] /= norm
		}
	}

	xi := make([][nStates][nStates]float64, T-1)
	for t := 0; t < T-1; t++ {
		norm := 0.0
		for i := 0; i < nStates; i++ {
			for j := 0; j < nStates; j++ {
				xi[t][i][j] = alpha[t][i] * h.trans[i][j] * b[t+1][j] * beta[t+1][j]
				norm += xi[t][i][j]
			}
		}
		for i := 0; i < nStates; i++ {
			for j := 0; j < nStates; j++ {
				xi[t][i][j] /= norm
			}
		}
	}

	ll := 0.0
	for t := range c {
		ll += math.Log(c[t]) + logScale[t]
	}
	return gamma, xi, ll
}

func (h *gaussianHMM) mStep(x [][nFeatures]float64, gamma [][nStates]float64, xi [][nStates][nStates]float64) {
	h.pi = gamma[0]

	for i := 0; i < nStates; i++ {
		row := 0.0
		for t := range xi {
			for j := 0; j < nStates; j++ {
				row += xi[t][i][j]
			}
		}
		for j := 0; j < nStates; j++ {
			num := 0.0
			for t := range xi {
				num += xi[t][i][j]
			}
			if row > 0 {
				h.trans[i][j] = num / row
			}
		}
	}

	for s := 0; s < nStates; s++ {
		w := 0.0
		var mu, v [nFeatures]float64
		for t, o := range x {
			w += gamma[t][s]
			for k := 0; k < nFeatures; k++ {
				mu[k] += gamma[t][s] * o[k]
			}
		}
		if w == 0 {
			continue
		}
		for k := range mu {
			mu[k] /= w
		}
		for t, o := range x {
			for k := 0; k < nFeatures; k++ {
				d := o[k] - mu[k]
				v[k] += gamma[t][s] * d * d
			}
		}
		for k := range v {
			v[k] = math.Max(v[k]/w, varFloor)
		}
		h.mean[s], h.vars[s] = mu, v
	}
}

// fitHMM returns the last-step state posterior and the index of the
// abnormal state, the one whose members carry the larger mean |TAR|.
func fitHMM(obs [][nFeatures]float64, maxIter int, tol float64) (last [nStates]float64, abnormal int, err error) {
	if len(obs) < 4 {
		return last, 0, errDegenerateFit
	}
	x := standardize(obs)
	h := initHMM(x)

	var gamma [][nStates]float64
	prev := math.Inf(-1)
	for it := 0; it < maxIter; it++ {
		g, xi, ll := h.posteriors(x)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return last, 0, errDegenerateFit
		}
		gamma = g
		if ll-prev < tol {
			break
		}
		prev = ll
		h.mStep(x, g, xi)
	}

	var absTAR, weight [nStates]float64
	for t, o := range x {
		for s := 0; s < nStates; s++ {
			absTAR[s] += gamma[t][s] * math.Abs(o[2])
			weight[s] += gamma[t][s]
		}
	}
	for s := 0; s < nStates; s++ {
		if weight[s] > 0 {
			absTAR[s] /= weight[s]
		}
	}
	if absTAR[0] > absTAR[1] {
		abnormal = 0
	} else {
		abnormal = 1
	}

	last = gamma[len(gamma)-1]
	for _, p := range last {
		if math.IsNaN(p) {
			return last, 0, errDegenerateFit
		}
	}
	return last, abnormal, nil
}
