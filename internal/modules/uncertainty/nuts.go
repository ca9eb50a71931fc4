package uncertainty

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// NUTS tuning constants (Hoffman & Gelman 2014, standard values).
const (
	maxTreeDepth    = 10
	deltaMax        = 1000.0 // energy error above this is a divergent transition
	targetAccept    = 0.8
	adaptGamma      = 0.05
	adaptT0         = 10.0
	adaptKappa      = 0.75
	initialStepSize = 0.1
)

// nutsSampler runs the No-U-Turn sampler over the 2-parameter noise model.
// Each sampler owns its RNG; no state is shared across calls.
type nutsSampler struct {
	model    noiseModel
	rng      *rand.Rand
	momentum distuv.Normal
}

func newNUTSSampler(seed uint64, chain uint64) *nutsSampler {
	rng := rand.New(rand.NewPCG(seed, chain+1))
	return &nutsSampler{
		model: noiseModel{},
		rng:   rng,
		momentum: distuv.Normal{
			Mu:    0,
			Sigma: 1,
			Src:   rand.NewPCG(seed^0xa5a5a5a5a5a5a5a5, chain+1),
		},
	}
}

// chainResult carries one chain's draws plus sampler diagnostics.
type chainResult struct {
	draws       [][]float64
	divergences int
	acceptSum   float64
	acceptCount int
	completed   bool
}

// run produces warmup+draws iterations, discarding warmup. Step size is
// adapted by dual averaging during warmup and frozen afterwards. The context
// is checked each iteration; on cancellation the result is returned with
// completed=false and whatever draws were collected.
func (s *nutsSampler) run(ctx context.Context, draws, warmup int, initial []float64) chainResult {
	res := chainResult{draws: make([][]float64, 0, draws)}

	theta := make([]float64, len(initial))
	copy(theta, initial)

	eps := s.findReasonableEpsilon(theta)
	mu := math.Log(10 * eps)
	logEpsBar := 0.0
	hBar := 0.0

	total := warmup + draws
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return res
		default:
		}

		theta2, alpha, nAlpha, diverged := s.transition(theta, eps)
		theta = theta2

		if diverged {
			res.divergences++
		}
		if nAlpha > 0 {
			res.acceptSum += alpha / float64(nAlpha)
			res.acceptCount++
		}

		if i <= warmup {
			// Dual averaging step-size adaptation.
			m := float64(i)
			accept := 0.0
			if nAlpha > 0 {
				accept = alpha / float64(nAlpha)
			}
			hBar = (1-1/(m+adaptT0))*hBar + (1/(m+adaptT0))*(targetAccept-accept)
			logEps := mu - math.Sqrt(m)/adaptGamma*hBar
			eta := math.Pow(m, -adaptKappa)
			logEpsBar = eta*logEps + (1-eta)*logEpsBar
			eps = math.Exp(logEps)
		} else {
			if i == warmup+1 {
				eps = math.Exp(logEpsBar)
				if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
					eps = initialStepSize
				}
			}
			draw := make([]float64, len(theta))
			copy(draw, theta)
			res.draws = append(res.draws, draw)
		}
	}

	res.completed = true
	return res
}

// transition performs one NUTS update from theta, returning the new
// position, the acceptance statistic, and whether the trajectory diverged.
func (s *nutsSampler) transition(theta []float64, eps float64) (next []float64, alpha float64, nAlpha int, diverged bool) {
	dim := len(theta)

	r0 := make([]float64, dim)
	for d := 0; d < dim; d++ {
		r0[d] = s.momentum.Rand()
	}

	joint := s.model.logDensity(theta) - 0.5*dot(r0, r0)
	// Slice variable in log space: logu = joint + log(uniform).
	logu := joint + math.Log(s.rng.Float64())

	thetaMinus := clone(theta)
	thetaPlus := clone(theta)
	rMinus := clone(r0)
	rPlus := clone(r0)
	next = clone(theta)

	n := 1
	keepGoing := true
	for depth := 0; keepGoing && depth < maxTreeDepth; depth++ {
		var t tree
		if s.rng.Float64() < 0.5 {
			t = s.buildTree(thetaMinus, rMinus, logu, -1, depth, eps, joint)
			thetaMinus = t.thetaMinus
			rMinus = t.rMinus
		} else {
			t = s.buildTree(thetaPlus, rPlus, logu, +1, depth, eps, joint)
			thetaPlus = t.thetaPlus
			rPlus = t.rPlus
		}

		if t.valid && s.rng.Float64() < float64(t.n)/float64(n) {
			next = t.theta
		}
		n += t.n
		alpha += t.alpha
		nAlpha += t.nAlpha
		if t.diverged {
			diverged = true
		}

		keepGoing = t.valid && noUTurn(thetaMinus, thetaPlus, rMinus, rPlus)
	}

	return next, alpha, nAlpha, diverged
}

// tree is the result of one buildTree recursion.
type tree struct {
	thetaMinus, rMinus []float64
	thetaPlus, rPlus   []float64
	theta              []float64
	n                  int
	valid              bool
	alpha              float64
	nAlpha             int
	diverged           bool
}

func (s *nutsSampler) buildTree(theta, r []float64, logu float64, dir int, depth int, eps, joint0 float64) tree {
	if depth == 0 {
		thetaP, rP := s.leapfrog(theta, r, float64(dir)*eps)
		jointP := s.model.logDensity(thetaP) - 0.5*dot(rP, rP)

		n := 0
		if logu <= jointP {
			n = 1
		}
		diverged := logu-jointP > deltaMax

		a := math.Exp(jointP - joint0)
		if a > 1 || math.IsNaN(a) {
			if math.IsNaN(a) {
				a = 0
			} else {
				a = 1
			}
		}

		return tree{
			thetaMinus: thetaP, rMinus: rP,
			thetaPlus: clone(thetaP), rPlus: clone(rP),
			theta:    clone(thetaP),
			n:        n,
			valid:    !diverged,
			alpha:    a,
			nAlpha:   1,
			diverged: diverged,
		}
	}

	left := s.buildTree(theta, r, logu, dir, depth-1, eps, joint0)
	out := left
	if left.valid {
		var right tree
		if dir == -1 {
			right = s.buildTree(left.thetaMinus, left.rMinus, logu, dir, depth-1, eps, joint0)
			out.thetaMinus = right.thetaMinus
			out.rMinus = right.rMinus
		} else {
			right = s.buildTree(left.thetaPlus, left.rPlus, logu, dir, depth-1, eps, joint0)
			out.thetaPlus = right.thetaPlus
			out.rPlus = right.rPlus
		}

		if total := left.n + right.n; total > 0 && s.rng.Float64() < float64(right.n)/float64(total) {
			out.theta = right.theta
		}
		out.n = left.n + right.n
		out.alpha = left.alpha + right.alpha
		out.nAlpha = left.nAlpha + right.nAlpha
		out.diverged = left.diverged || right.diverged
		out.valid = right.valid && noUTurn(out.thetaMinus, out.thetaPlus, out.rMinus, out.rPlus)
	}

	return out
}

// leapfrog performs one leapfrog integration step of size eps.
func (s *nutsSampler) leapfrog(theta, r []float64, eps float64) ([]float64, []float64) {
	dim := len(theta)
	grad := make([]float64, dim)
	thetaNew := clone(theta)
	rNew := clone(r)

	s.model.gradient(grad, thetaNew)
	for d := 0; d < dim; d++ {
		rNew[d] += 0.5 * eps * grad[d]
	}
	for d := 0; d < dim; d++ {
		thetaNew[d] += eps * rNew[d]
	}
	s.model.gradient(grad, thetaNew)
	for d := 0; d < dim; d++ {
		rNew[d] += 0.5 * eps * grad[d]
	}

	return thetaNew, rNew
}

// findReasonableEpsilon is the standard step-size initialization heuristic:
// double or halve until one leapfrog step crosses 50% acceptance.
func (s *nutsSampler) findReasonableEpsilon(theta []float64) float64 {
	dim := len(theta)
	eps := initialStepSize

	r := make([]float64, dim)
	for d := 0; d < dim; d++ {
		r[d] = s.momentum.Rand()
	}

	joint := s.model.logDensity(theta) - 0.5*dot(r, r)
	thetaP, rP := s.leapfrog(theta, r, eps)
	jointP := s.model.logDensity(thetaP) - 0.5*dot(rP, rP)

	dir := -1.0
	if jointP-joint > math.Log(0.5) {
		dir = 1.0
	}
	for i := 0; i < 50; i++ {
		if dir > 0 && jointP-joint <= math.Log(0.5) {
			break
		}
		if dir < 0 && jointP-joint >= math.Log(0.5) {
			break
		}
		eps *= math.Pow(2, dir)
		thetaP, rP = s.leapfrog(theta, r, eps)
		jointP = s.model.logDensity(thetaP) - 0.5*dot(rP, rP)
	}

	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		eps = initialStepSize
	}
	return eps
}

// noUTurn checks the trajectory termination criterion.
func noUTurn(thetaMinus, thetaPlus, rMinus, rPlus []float64) bool {
	dim := len(thetaMinus)
	diff := make([]float64, dim)
	for d := 0; d < dim; d++ {
		diff[d] = thetaPlus[d] - thetaMinus[d]
	}
	return dot(diff, rMinus) >= 0 && dot(diff, rPlus) >= 0
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func clone(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
