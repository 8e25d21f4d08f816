package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"

	"github.com/shopspring/decimal"
)

type ListObservationsInput struct {
	// inclusive bounds, nil for open
	Start *time.Time
	End   *time.Time
}

type ObservationRepository interface {
	List(ctx context.Context, in ListObservationsInput) ([]domain.Observation, error)
}

// pendingObservation carries a close price so the forward return
// can be derived when the source has no Target for the row
type pendingObservation struct {
	domain.Observation
	HasTarget bool
	Close     *float64
}

// resolveForwardReturns fills missing targets from closes h rows
// ahead within each asset's own date-ordered series. rows with no
// target that cannot be resolved are dropped. with h == 0 a missing
// target is an input error
func resolveForwardReturns(rows []pendingObservation, horizon int) ([]domain.Observation, error) {
	byAsset := map[string][]pendingObservation{}
	assets := []string{}
	for _, r := range rows {
		if _, ok := byAsset[r.Asset]; !ok {
			assets = append(assets, r.Asset)
		}
		byAsset[r.Asset] = append(byAsset[r.Asset], r)
	}
	sort.Strings(assets)

	out := []domain.Observation{}
	for _, asset := range assets {
		series := byAsset[asset]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})

		for i, r := range series {
			if r.HasTarget {
				out = append(out, r.Observation)
				continue
			}
			if horizon == 0 || r.Close == nil {
				return nil, domain.NewInputError("missing Target for %s on %s", r.Asset, util.FormatDate(r.Date))
			}
			if i+horizon >= len(series) {
				// no forward close yet
				continue
			}
			next := series[i+horizon].Close
			if next == nil {
				continue
			}
			ret, err := forwardReturn(*r.Close, *next)
			if err != nil {
				return nil, domain.NewInputError("%s on %s: %s", r.Asset, util.FormatDate(r.Date), err.Error())
			}
			r.Observation.RealizedReturn = ret
			out = append(out, r.Observation)
		}
	}

	return out, nil
}

func forwardReturn(price, forwardPrice float64) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("cannot compute forward return from close %f", price)
	}
	start := decimal.NewFromFloat(price)
	return decimal.NewFromFloat(forwardPrice).Sub(start).Div(start).InexactFloat64(), nil
}

func filterByDate(observations []domain.Observation, in ListObservationsInput) []domain.Observation {
	out := []domain.Observation{}
	for _, o := range observations {
		if util.InRange(o.Date, in.Start, in.End) {
			out = append(out, o)
		}
	}
	return out
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not a finite number", name)
	}
	return nil
}
