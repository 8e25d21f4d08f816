package calculator

import (
	"math"
	"sort"
	"time"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"
)

// SignalConverter turns the cross-section for a single date
// into a weight per asset
type SignalConverter interface {
	Convert(observations []domain.Observation) (map[string]float64, error)
}

// ScoreFunc extracts the ranking score from an observation
type ScoreFunc func(domain.Observation) (float64, error)

func PredictionScore(o domain.Observation) (float64, error) {
	if o.Prediction == nil {
		return 0, domain.NewInputError("missing prediction for %s on %s", o.Asset, util.FormatDate(o.Date))
	}
	return *o.Prediction, nil
}

type QuantileConverter struct {
	TopPct    float64
	BottomPct float64
	// defaults to PredictionScore
	Score ScoreFunc
}

func NewQuantileConverter(topPct, bottomPct float64) QuantileConverter {
	return QuantileConverter{
		TopPct:    topPct,
		BottomPct: bottomPct,
		Score:     PredictionScore,
	}
}

// selectionCount is ceil(pct * n), at least 1 and at most n.
// the epsilon keeps products like 0.2*15 from rounding up
func selectionCount(pct float64, n int) int {
	k := int(math.Ceil(pct*float64(n) - 1e-9))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

type scoredAsset struct {
	Asset string
	Score float64
}

// Convert goes long the top fraction and short the bottom fraction
// by score. ties are broken by asset id so selection is stable across
// runs. the sets are disjoint unless the cross-section is smaller than
// both counts together, in which case the short wins
func (c QuantileConverter) Convert(observations []domain.Observation) (map[string]float64, error) {
	weights := map[string]float64{}
	if len(observations) == 0 {
		return weights, nil
	}

	scoreFn := c.Score
	if scoreFn == nil {
		scoreFn = PredictionScore
	}

	scored := make([]scoredAsset, 0, len(observations))
	for _, o := range observations {
		score, err := scoreFn(o)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(score) {
			return nil, domain.NewInputError("NaN score for %s on %s", o.Asset, util.FormatDate(o.Date))
		}
		scored = append(scored, scoredAsset{Asset: o.Asset, Score: score})
		weights[o.Asset] = 0
	}

	n := len(scored)
	nTop := selectionCount(c.TopPct, n)
	nBottom := selectionCount(c.BottomPct, n)

	// one total order decides both sides: longs from the head,
	// shorts from the tail. they only meet when nTop+nBottom > n
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Asset < scored[j].Asset
	})
	for _, s := range scored[:nTop] {
		weights[s.Asset] = 1
	}
	for _, s := range scored[n-nBottom:] {
		weights[s.Asset] = -1
	}

	return weights, nil
}

type ProbabilityConverter struct{}

// Convert sizes each position at P(up) - P(down), flat when the
// flat class is the most likely
func (ProbabilityConverter) Convert(observations []domain.Observation) (map[string]float64, error) {
	weights := map[string]float64{}
	for _, o := range observations {
		p := o.Probabilities
		if p == nil {
			return nil, domain.NewInputError("missing probabilities for %s on %s", o.Asset, util.FormatDate(o.Date))
		}
		if p.FlatIsMax() {
			weights[o.Asset] = 0
			continue
		}
		weights[o.Asset] = p.Up - p.Down
	}
	return weights, nil
}

type DateBucket struct {
	Date         time.Time
	Observations []domain.Observation
}

// BucketByDate groups observations by calendar date into ordered
// buckets in one pass. within a bucket, input order is kept
func BucketByDate(observations []domain.Observation) []DateBucket {
	index := map[string]int{}
	buckets := []DateBucket{}
	for _, o := range observations {
		key := util.FormatDate(o.Date)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, DateBucket{Date: o.Date})
		}
		buckets[i].Observations = append(buckets[i].Observations, o)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})

	return buckets
}
