package calculator

import (
	"fmt"
	"math"
	"sort"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"
)

// NewStrategyRow applies a weight to an observation. untraded rows
// get a strategy return of exactly 0. the row shares no memory with o
func NewStrategyRow(o domain.Observation, weight float64) domain.StrategyRow {
	row := domain.StrategyRow{
		Asset:          o.Asset,
		Date:           o.Date,
		Prediction:     o.Prediction,
		Probabilities:  o.Probabilities,
		RealizedReturn: o.RealizedReturn,
		Weight:         weight,
		Traded:         weight != 0,
	}.Clone()
	if row.Traded {
		row.StrategyReturn = weight * o.RealizedReturn
	}
	return row
}

// BuildStrategyRows converts each date's cross-section with the
// given converter and returns rows ordered by (asset, date), with
// cumulative returns filled in
func BuildStrategyRows(observations []domain.Observation, converter SignalConverter) ([]domain.StrategyRow, error) {
	rows := make([]domain.StrategyRow, 0, len(observations))
	for _, bucket := range BucketByDate(observations) {
		weights, err := converter.Convert(bucket.Observations)
		if err != nil {
			return nil, fmt.Errorf("failed to convert signals on %s: %w", util.FormatDate(bucket.Date), err)
		}
		for _, o := range bucket.Observations {
			w, ok := weights[o.Asset]
			if !ok {
				return nil, fmt.Errorf("converter returned no weight for %s on %s", o.Asset, util.FormatDate(o.Date))
			}
			if math.IsNaN(w) || w < -1 || w > 1 {
				return nil, fmt.Errorf("weight %f for %s on %s is outside [-1, 1]", w, o.Asset, util.FormatDate(o.Date))
			}
			rows = append(rows, NewStrategyRow(o, w))
		}
	}

	return ApplyCumulativeReturns(rows), nil
}

// ApplyCumulativeReturns sorts rows by (asset, date) and folds each
// asset's series, compounding (1 + r) on traded rows only. untraded
// rows repeat the last compounded value, or 0 before the first trade.
// the input slice is not modified
func ApplyCumulativeReturns(rows []domain.StrategyRow) []domain.StrategyRow {
	out := make([]domain.StrategyRow, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Asset != out[j].Asset {
			return out[i].Asset < out[j].Asset
		}
		return out[i].Date.Before(out[j].Date)
	})

	var (
		currentAsset string
		growth       float64
		last         float64
	)
	for i := range out {
		if i == 0 || out[i].Asset != currentAsset {
			currentAsset = out[i].Asset
			growth = 1
			last = 0
		}
		if out[i].Traded {
			growth *= 1 + out[i].StrategyReturn
			last = growth - 1
		}
		out[i].CumulativeReturn = last
	}

	return out
}

// RowsByAsset splits (asset, date) ordered rows into per-asset series
func RowsByAsset(rows []domain.StrategyRow) map[string][]domain.StrategyRow {
	out := map[string][]domain.StrategyRow{}
	for _, r := range rows {
		out[r.Asset] = append(out[r.Asset], r)
	}
	return out
}
