package insights

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// Counts is a success/total pair for proportion tests.
type Counts struct {
	Success int
	Total   int
}

// ZTestResult holds the outcome of a two-proportion z-test. Valid is false
// when any expected cell count falls below 5 and the normal approximation is
// unsafe; callers should fall back to Fisher's exact test in that case.
type ZTestResult struct {
	P     float64 `json:"p"`
	Z     float64 `json:"z"`
	Valid bool    `json:"valid"`
}

// TwoProportionZTest runs a pooled two-proportion z-test. Degenerate inputs
// (zero totals, pooled proportion at 0 or 1) yield the neutral result p=1:
// "cannot determine significance" is an outcome here, not an error.
func TwoProportionZTest(a, b Counts) ZTestResult {
	neutral := ZTestResult{P: 1, Valid: false}
	if a.Total <= 0 || b.Total <= 0 {
		return neutral
	}
	pooled := float64(a.Success+b.Success) / float64(a.Total+b.Total)
	if pooled <= 0 || pooled >= 1 {
		return neutral
	}

	// Expected cell counts under the pooled proportion; the usual np>=5 rule.
	valid := float64(a.Total)*pooled >= 5 &&
		float64(a.Total)*(1-pooled) >= 5 &&
		float64(b.Total)*pooled >= 5 &&
		float64(b.Total)*(1-pooled) >= 5

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(a.Total) + 1/float64(b.Total)))
	if se == 0 {
		return neutral
	}
	pa := float64(a.Success) / float64(a.Total)
	pb := float64(b.Success) / float64(b.Total)
	z := (pa - pb) / se
	p := math.Erfc(math.Abs(z) / math.Sqrt2) // two-sided
	return ZTestResult{P: p, Z: z, Valid: valid}
}

// FishersExactTwoSided computes the two-sided p-value for the 2x2 table
//
//	a b
//	c d
//
// by summing the hypergeometric probabilities of every table (with the same
// margins) whose probability does not exceed the observed table's. All
// factorials are kept in log space so large counts cannot overflow.
func FishersExactTwoSided(a, b, c, d int) float64 {
	if a < 0 || b < 0 || c < 0 || d < 0 {
		return 1
	}
	row1 := a + b
	row2 := c + d
	col1 := a + c
	n := row1 + row2
	if n == 0 || row1 == 0 || row2 == 0 || col1 == 0 || col1 == n {
		return 1
	}

	logObserved := logHypergeometric(a, row1, row2, col1)

	lo := 0
	if col1 > row2 {
		lo = col1 - row2
	}
	hi := col1
	if row1 < hi {
		hi = row1
	}

	// Small slack absorbs float noise when comparing log probabilities.
	const slack = 1e-7
	p := 0.0
	for x := lo; x <= hi; x++ {
		lp := logHypergeometric(x, row1, row2, col1)
		if lp <= logObserved+slack {
			p += math.Exp(lp)
		}
	}
	if p > 1 {
		p = 1
	}
	return p
}

// logHypergeometric returns log P(X = x) for a 2x2 table with the given
// margins: choose(row1,x)*choose(row2,col1-x)/choose(n,col1).
func logHypergeometric(x, row1, row2, col1 int) float64 {
	return logChoose(row1, x) + logChoose(row2, col1-x) - logChoose(row1+row2, col1)
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	return logFactorial(n) - logFactorial(k) - logFactorial(n-k)
}

// logFactorial uses the log-gamma function, which switches to Stirling's
// series internally for large arguments.
func logFactorial(n int) float64 {
	v, _ := math.Lgamma(float64(n) + 1)
	return v
}

// BenjaminiHochberg applies the step-up false-discovery-rate correction and
// returns adjusted p-values in the same order as the input.
func BenjaminiHochberg(pvalues []float64) []float64 {
	m := len(pvalues)
	if m == 0 {
		return nil
	}
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return pvalues[order[i]] < pvalues[order[j]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		adj := pvalues[idx] * float64(m) / float64(rank)
		if adj < running {
			running = adj
		}
		adjusted[idx] = running
	}
	return adjusted
}

// Percentile returns the linearly interpolated p-quantile (p in [0,1]) of
// values. The input is not modified. Empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Winsorize caps every value at the upper percentile (e.g. 0.99) to bound
// outlier influence before resampling. The cap is taken at the ceiling rank so
// the operation is idempotent: winsorizing an already-winsorized series is a
// no-op.
func Winsorize(values []float64, upperPct float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(upperPct * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	ceiling := sorted[idx]

	out := make([]float64, len(values))
	for i, v := range values {
		if v > ceiling {
			v = ceiling
		}
		out[i] = v
	}
	return out
}

// BootstrapCI is a percentile-bootstrap confidence interval for a difference
// of means. Passed is true iff the interval excludes zero.
type BootstrapCI struct {
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
	Passed bool    `json:"passed"`
}

// BootstrapDiffCI computes a 95% percentile-bootstrap CI for mean(a)-mean(b)
// with the given number of resampling iterations. transform, when non-nil, is
// applied to every value before resampling (e.g. log1p). Groups are resampled
// independently, not paired. Empty inputs yield the neutral {0,0,false}.
func BootstrapDiffCI(a, b []float64, iterations int, transform func(float64) float64) BootstrapCI {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return bootstrapDiffCI(a, b, iterations, transform, rng)
}

func bootstrapDiffCI(a, b []float64, iterations int, transform func(float64) float64, rng *rand.Rand) BootstrapCI {
	if len(a) == 0 || len(b) == 0 || iterations <= 0 {
		return BootstrapCI{}
	}
	ta := applyTransform(a, transform)
	tb := applyTransform(b, transform)

	diffs := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		diffs[i] = resampleMean(ta, rng) - resampleMean(tb, rng)
	}
	sort.Float64s(diffs)
	lo := Percentile(diffs, 0.025)
	hi := Percentile(diffs, 0.975)
	return BootstrapCI{Lo: lo, Hi: hi, Passed: lo > 0 || hi < 0}
}

func applyTransform(values []float64, transform func(float64) float64) []float64 {
	if transform == nil {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = transform(v)
	}
	return out
}

func resampleMean(values []float64, rng *rand.Rand) float64 {
	sum := 0.0
	for range values {
		sum += values[rng.Intn(len(values))]
	}
	return sum / float64(len(values))
}

// median returns the middle value of the series (mean of the two middle
// values for even lengths). Empty input yields 0.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// medianAbsDeviation returns the median of |x - center| over the series.
func medianAbsDeviation(values []float64, center float64) float64 {
	if len(values) == 0 {
		return 0
	}
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - center)
	}
	return median(devs)
}

// pearsonCorrelation returns Pearson's r for the paired series, or false when
// fewer than 3 pairs exist or either series has zero variance.
func pearsonCorrelation(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n != len(ys) || n < 3 {
		return 0, false
	}
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}
