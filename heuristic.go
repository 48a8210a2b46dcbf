package photoverify

import (
	"image"
	"math"
	"slices"
)

// Heuristic scorer constants. The scorer is a fixed, interpretable linear
// model over image statistics; every coefficient lives here.
const (
	heuristicSize = 320

	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114

	edgePercentile  = 60.0
	trashPercentile = 70.0

	straightnessScale = 4.0
	saturationEpsilon = 1e-6

	greenMin      = 0.28
	brownRedMin   = 0.28
	brownGreenMin = 0.20
	brownBlueMax  = 0.38

	forestOutdoorMin = 0.20
	forestSatMin     = 0.30
	forestEdgeMax    = 0.12
	forestPenaltyMax = 0.06
	forestWeight     = 0.5

	darkLumaMax = 0.28
	trashScale  = 1.5

	entropyBins = 32

	weightEdge         = 0.30
	weightStraightness = 0.18
	weightOutdoor      = 0.14
	weightDark         = 0.18
	weightEntropy      = 0.12
	weightTrash        = 0.08
	heuristicBias      = 0.05

	clutterEdgeMin = 0.08
	clutterDarkMin = 0.18
	clutterBonus   = 0.06
)

// HeuristicSignals are the intermediate statistics of the heuristic scorer.
type HeuristicSignals struct {
	EdgeDensity    float64
	Straightness   float64
	MeanSaturation float64
	OutdoorRatio   float64
	ForestPenalty  float64
	DarkRatio      float64
	TrashCue       float64
	Entropy        float64
}

// Score fuses the signals and clamps the result to [floor, 1].
func (s HeuristicSignals) Score(floor, bias float64) float64 {
	base := weightEdge*s.EdgeDensity +
		weightStraightness*s.Straightness +
		weightOutdoor*s.OutdoorRatio +
		weightDark*s.DarkRatio +
		weightEntropy*s.Entropy +
		weightTrash*s.TrashCue
	base += heuristicBias + bias
	if s.EdgeDensity > clutterEdgeMin && s.DarkRatio > clutterDarkMin {
		base += clutterBonus
	}
	return math.Max(floor, math.Min(1, base-s.ForestPenalty))
}

// HeuristicRelevance scores img without a model. The result is never below floor.
func HeuristicRelevance(img image.Image, floor, bias float64) float64 {
	return AnalyzeHeuristic(img).Score(floor, bias)
}

// AnalyzeHeuristic computes the heuristic statistics on a 320×320 resample of
// img with channels scaled to [0,1]. Edge thresholds are percentiles of the
// image's own gradient distribution.
func AnalyzeHeuristic(img image.Image) HeuristicSignals {
	const n = heuristicSize
	rgba := resizeRGB(img, n, n)

	r := make([]float64, n*n)
	g := make([]float64, n*n)
	b := make([]float64, n*n)
	gray := make([]float64, n*n)
	for y := 0; y < n; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < n; x++ {
			i := y*n + x
			r[i] = float64(row[x*4]) / 255
			g[i] = float64(row[x*4+1]) / 255
			b[i] = float64(row[x*4+2]) / 255
			gray[i] = lumaR*r[i] + lumaG*g[i] + lumaB*b[i]
		}
	}

	var s HeuristicSignals

	// First differences: gx is n×(n-1), gy is (n-1)×n. Magnitude uses the
	// overlapping (n-1)×(n-1) region.
	const m = n - 1
	var sumGX, sumGY float64
	for y := 0; y < n; y++ {
		for x := 0; x < m; x++ {
			sumGX += math.Abs(gray[y*n+x+1] - gray[y*n+x])
		}
	}
	for y := 0; y < m; y++ {
		for x := 0; x < n; x++ {
			sumGY += math.Abs(gray[(y+1)*n+x] - gray[y*n+x])
		}
	}
	mag := make([]float64, m*m)
	for y := 0; y < m; y++ {
		for x := 0; x < m; x++ {
			gx := math.Abs(gray[y*n+x+1] - gray[y*n+x])
			gy := math.Abs(gray[(y+1)*n+x] - gray[y*n+x])
			mag[y*m+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}

	sorted := slices.Clone(mag)
	slices.Sort(sorted)
	edgeThr := percentileSorted(sorted, edgePercentile)
	trashThr := percentileSorted(sorted, trashPercentile)

	var edges, trash int
	for y := 0; y < m; y++ {
		for x := 0; x < m; x++ {
			v := mag[y*m+x]
			if v > edgeThr {
				edges++
			}
			if v > trashThr && gray[y*n+x] < darkLumaMax {
				trash++
			}
		}
	}
	s.EdgeDensity = float64(edges) / float64(m*m)
	s.TrashCue = float64(trash) / float64(m*m) * trashScale

	rowEnergy := sumGX / float64(n*m)
	colEnergy := sumGY / float64(m*n)
	s.Straightness = math.Min(1, straightnessScale*0.5*(rowEnergy+colEnergy))

	var satSum float64
	var outdoor, dark int
	for i := range gray {
		maxc := max(r[i], g[i], b[i])
		minc := min(r[i], g[i], b[i])
		if maxc > 0 {
			satSum += (maxc - minc) / (maxc + saturationEpsilon)
		}
		greenish := g[i] > r[i] && g[i] > b[i] && g[i] > greenMin
		brownish := r[i] > brownRedMin && g[i] > brownGreenMin && b[i] < brownBlueMax && r[i] > b[i]
		if greenish || brownish {
			outdoor++
		}
		if gray[i] < darkLumaMax {
			dark++
		}
	}
	total := float64(len(gray))
	s.MeanSaturation = satSum / total
	s.OutdoorRatio = float64(outdoor) / total
	s.DarkRatio = float64(dark) / total

	if s.OutdoorRatio > forestOutdoorMin && s.MeanSaturation > forestSatMin && s.EdgeDensity < forestEdgeMax {
		s.ForestPenalty = math.Min(forestPenaltyMax, forestWeight*s.OutdoorRatio+forestWeight*s.MeanSaturation)
	}

	s.Entropy = lumaEntropy(gray)
	return s
}

// lumaEntropy is the Shannon entropy of a 32-bin histogram of luma values
// in [0,1], normalized by log2(32) and clamped to [0,1].
func lumaEntropy(gray []float64) float64 {
	if len(gray) == 0 {
		return 0
	}
	var counts [entropyBins]int
	for _, v := range gray {
		bin := int(v * entropyBins)
		if bin >= entropyBins {
			bin = entropyBins - 1
		}
		if bin < 0 {
			bin = 0
		}
		counts[bin]++
	}

	total := float64(len(gray))
	var ent float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		ent -= p * math.Log2(p)
	}
	return clamp01(ent / math.Log2(entropyBins))
}

// percentileSorted returns the p-th percentile of ascending data using
// linear interpolation between closest ranks.
func percentileSorted(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// heuristicScorer is the relevance path when no model is loaded.
type heuristicScorer struct {
	floor float64
	bias  float64
}

func (s *heuristicScorer) relevance(li *loadedImage) (float64, error) {
	return HeuristicRelevance(li.img, s.floor, s.bias), nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
