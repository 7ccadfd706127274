package mcmc

// #region imports
import (
	"errors"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// #endregion

// #region nuts

const (
	defaultMaxDepth = 6

	// deltaMax bounds how far the joint density may fall below the
	// slice before the trajectory is declared divergent.
	deltaMax = 1000
)

// NUTS is the No-U-Turn sampler (Hoffman & Gelman, naive variant):
// trajectory length doubles until the path turns back on itself, so no
// leapfrog step count needs hand-tuning.
type NUTS struct {
	base
	MaxDepth int
}

// Name implements Kernel.
func (k *NUTS) Name() KernelName { return KernelNUTS }

// leaf is one endpoint of a trajectory subtree.
type leaf struct {
	pos, mom, grad []float64
}

// tree is the result of recursively building a trajectory subtree.
type tree struct {
	minus, plus leaf
	prop        State
	n           int
	ok          bool
	alpha       float64
	nalpha      int
}

// Step implements Kernel.
func (k *NUTS) Step(cur State, rng *exprand.Rand) (StepResult, error) {
	dim := k.dim()
	unit := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	mom := make([]float64, dim)
	for i := range mom {
		mom[i] = unit.Rand()
	}
	joint0 := logJoint(cur.LogP, mom)
	logu := joint0 + math.Log(rng.Float64())

	grad0, err := k.gradient(cur.Pos)
	if err != nil {
		return k.failure(cur, err)
	}

	start := leaf{
		pos:  append([]float64(nil), cur.Pos...),
		mom:  append([]float64(nil), mom...),
		grad: grad0,
	}
	minus, plus := start, start

	prop := cur
	accepted := false
	n := 1
	var alphaSum float64
	var nalpha int

	for depth := 0; depth < k.MaxDepth; depth++ {
		var sub tree
		var err error
		if rng.Float64() < 0.5 {
			sub, err = k.buildTree(minus, logu, -1, depth, joint0, rng)
			if err == nil {
				minus = sub.minus
			}
		} else {
			sub, err = k.buildTree(plus, logu, +1, depth, joint0, rng)
			if err == nil {
				plus = sub.plus
			}
		}
		if err != nil {
			return k.failure(cur, err)
		}

		alphaSum += sub.alpha
		nalpha += sub.nalpha

		if sub.ok && sub.n > 0 && rng.Float64() < float64(sub.n)/float64(n) {
			prop = sub.prop
			accepted = true
		}
		n += sub.n
		if !sub.ok || !noUTurn(minus, plus) {
			break
		}
	}

	logAcc := math.Inf(-1)
	if nalpha > 0 && alphaSum > 0 {
		logAcc = math.Log(alphaSum / float64(nalpha))
	}
	return StepResult{Next: prop, Accepted: accepted, LogAccRatio: logAcc}, nil
}

// buildTree recursively doubles the trajectory in direction dir.
func (k *NUTS) buildTree(from leaf, logu float64, dir int, depth int, joint0 float64, rng *exprand.Rand) (tree, error) {
	if depth == 0 {
		next, lp, err := k.leapfrog(from, dir)
		if err != nil {
			return tree{}, err
		}
		joint := logJoint(lp, next.mom)

		var t tree
		t.minus, t.plus = next, next
		t.prop = State{Pos: append([]float64(nil), next.pos...), LogP: lp}
		if logu <= joint {
			t.n = 1
		}
		t.ok = logu < joint+deltaMax
		t.alpha = math.Min(1, math.Exp(joint-joint0))
		if math.IsNaN(t.alpha) {
			t.alpha = 0
		}
		t.nalpha = 1
		return t, nil
	}

	first, err := k.buildTree(from, logu, dir, depth-1, joint0, rng)
	if err != nil {
		return tree{}, err
	}
	if !first.ok {
		return first, nil
	}

	var edge leaf
	if dir < 0 {
		edge = first.minus
	} else {
		edge = first.plus
	}
	second, err := k.buildTree(edge, logu, dir, depth-1, joint0, rng)
	if err != nil {
		return tree{}, err
	}

	t := first
	if dir < 0 {
		t.minus = second.minus
	} else {
		t.plus = second.plus
	}
	if second.n > 0 && rng.Float64() < float64(second.n)/float64(first.n+second.n) {
		t.prop = second.prop
	}
	t.n = first.n + second.n
	t.ok = second.ok && noUTurn(t.minus, t.plus)
	t.alpha = first.alpha + second.alpha
	t.nalpha = first.nalpha + second.nalpha
	return t, nil
}

// leapfrog takes one step of size dir*eps from the given leaf.
func (k *NUTS) leapfrog(from leaf, dir int) (leaf, float64, error) {
	dim := k.dim()
	next := leaf{
		pos:  make([]float64, dim),
		mom:  make([]float64, dim),
		grad: nil,
	}
	copy(next.pos, from.pos)
	copy(next.mom, from.mom)

	for i := 0; i < dim; i++ {
		next.mom[i] += 0.5 * float64(dir) * k.eps(i) * from.grad[i]
	}
	for i := 0; i < dim; i++ {
		next.pos[i] += float64(dir) * k.eps(i) * next.mom[i]
	}
	lp, err := k.logProb(next.pos)
	if err != nil {
		return leaf{}, 0, err
	}
	if math.IsInf(lp, -1) {
		// out of bounds: a zero gradient lets the u-turn criterion
		// terminate the doubling naturally
		next.grad = make([]float64, dim)
		return next, lp, nil
	}
	grad, err := k.gradient(next.pos)
	if err != nil {
		return leaf{}, 0, err
	}
	next.grad = grad
	for i := 0; i < dim; i++ {
		next.mom[i] += 0.5 * float64(dir) * k.eps(i) * grad[i]
	}
	return next, lp, nil
}

// failure maps a failed density evaluation to a single-proposal
// rejection; other errors abort the chain.
func (k *NUTS) failure(cur State, err error) (StepResult, error) {
	if errors.Is(err, errSimFailed) {
		return StepResult{Next: cur, LogAccRatio: math.Inf(-1), SimFailed: true}, nil
	}
	return StepResult{}, err
}

// noUTurn reports whether the trajectory endpoints are still moving
// apart.
func noUTurn(minus, plus leaf) bool {
	var dotMinus, dotPlus float64
	for i := range plus.pos {
		d := plus.pos[i] - minus.pos[i]
		dotMinus += d * minus.mom[i]
		dotPlus += d * plus.mom[i]
	}
	return dotMinus >= 0 && dotPlus >= 0
}

// #endregion nuts
