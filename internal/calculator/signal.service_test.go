package calculator

import (
	"errors"
	"testing"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 {
	return &f
}

func scoredObservations(scores map[string]float64) []domain.Observation {
	out := []domain.Observation{}
	for asset, score := range scores {
		out = append(out, domain.Observation{
			Asset:      asset,
			Date:       util.NewDate(2025, 1, 2),
			Prediction: floatPtr(score),
		})
	}
	return out
}

func Test_selectionCount(t *testing.T) {
	require.Equal(t, 1, selectionCount(0.2, 1))
	require.Equal(t, 1, selectionCount(0.2, 2))
	require.Equal(t, 1, selectionCount(0.2, 5))
	require.Equal(t, 2, selectionCount(0.2, 6))
	require.Equal(t, 2, selectionCount(0.2, 10))
	require.Equal(t, 3, selectionCount(0.2, 15))
	require.Equal(t, 3, selectionCount(1, 3))
}

func TestQuantileConverter_Convert(t *testing.T) {
	t.Run("top and bottom fifth", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		weights, err := c.Convert(scoredObservations(map[string]float64{
			"AAPL": 0.9,
			"MSFT": 0.5,
			"GOOG": 0.1,
			"AMZN": -0.3,
			"META": -0.8,
			"NVDA": 0.7,
		}))
		require.NoError(t, err)

		// ceil(0.2 * 6) = 2 on each side
		require.Equal(t, "", cmp.Diff(map[string]float64{
			"AAPL": 1,
			"NVDA": 1,
			"MSFT": 0,
			"GOOG": 0,
			"AMZN": -1,
			"META": -1,
		}, weights))
	})

	t.Run("ties at the cutoff break on asset id", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		obs := scoredObservations(map[string]float64{
			"CCC": 1,
			"AAA": 1,
			"BBB": 1,
			"DDD": 0,
			"EEE": 0,
		})
		for i := 0; i < 20; i++ {
			weights, err := c.Convert(obs)
			require.NoError(t, err)
			require.Equal(t, "", cmp.Diff(map[string]float64{
				"AAA": 1,
				"BBB": 0,
				"CCC": 0,
				"DDD": 0,
				"EEE": -1,
			}, weights))
		}
	})

	t.Run("fully tied cross-section still fills both sides", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		scores := map[string]float64{}
		for _, asset := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
			scores[asset] = 1
		}
		weights, err := c.Convert(scoredObservations(scores))
		require.NoError(t, err)

		longs, shorts := 0, 0
		for _, w := range weights {
			switch w {
			case 1:
				longs++
			case -1:
				shorts++
			}
		}
		require.Equal(t, 2, longs)
		require.Equal(t, 2, shorts)
		require.Equal(t, 1.0, weights["A"])
		require.Equal(t, 1.0, weights["B"])
		require.Equal(t, -1.0, weights["I"])
		require.Equal(t, -1.0, weights["J"])
	})

	t.Run("two tied assets split long and short", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		weights, err := c.Convert(scoredObservations(map[string]float64{
			"A": 1, "B": 1,
		}))
		require.NoError(t, err)
		require.Equal(t, map[string]float64{"A": 1, "B": -1}, weights)
	})

	t.Run("top and bottom disjoint for wide cross-section", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		weights, err := c.Convert(scoredObservations(map[string]float64{
			"A": 3, "B": 2,
		}))
		require.NoError(t, err)
		require.Equal(t, 1.0, weights["A"])
		require.Equal(t, -1.0, weights["B"])
	})

	t.Run("single asset is both, short wins", func(t *testing.T) {
		c := NewQuantileConverter(0.2, 0.2)
		weights, err := c.Convert(scoredObservations(map[string]float64{
			"A": 3,
		}))
		require.NoError(t, err)
		require.Equal(t, map[string]float64{"A": -1}, weights)
	})

	t.Run("empty date", func(t *testing.T) {
		weights, err := NewQuantileConverter(0.2, 0.2).Convert(nil)
		require.NoError(t, err)
		require.Empty(t, weights)
	})

	t.Run("missing prediction", func(t *testing.T) {
		_, err := NewQuantileConverter(0.2, 0.2).Convert([]domain.Observation{
			{Asset: "A", Date: util.NewDate(2025, 1, 2)},
		})
		require.Error(t, err)
		var inputErr domain.InputError
		require.True(t, errors.As(err, &inputErr))
	})
}

func TestProbabilityConverter_Convert(t *testing.T) {
	obs := []domain.Observation{
		{Asset: "UP", Probabilities: &domain.ClassProbabilities{Down: 0.1, Flat: 0.2, Up: 0.7}},
		{Asset: "DOWN", Probabilities: &domain.ClassProbabilities{Down: 0.6, Flat: 0.3, Up: 0.1}},
		{Asset: "FLAT", Probabilities: &domain.ClassProbabilities{Down: 0.1, Flat: 0.5, Up: 0.4}},
		{Asset: "TIE", Probabilities: &domain.ClassProbabilities{Down: 0.1, Flat: 0.45, Up: 0.45}},
	}
	weights, err := ProbabilityConverter{}.Convert(obs)
	require.NoError(t, err)

	require.InDelta(t, 0.6, weights["UP"], 1e-12)
	require.InDelta(t, -0.5, weights["DOWN"], 1e-12)
	require.Equal(t, 0.0, weights["FLAT"])
	// flat is not strictly the max, so the position stands
	require.InDelta(t, 0.35, weights["TIE"], 1e-12)

	for _, w := range weights {
		require.GreaterOrEqual(t, w, -1.0)
		require.LessOrEqual(t, w, 1.0)
	}

	t.Run("missing probabilities", func(t *testing.T) {
		_, err := ProbabilityConverter{}.Convert([]domain.Observation{{Asset: "A"}})
		require.Error(t, err)
	})
}

func TestBucketByDate(t *testing.T) {
	d1 := util.NewDate(2025, 1, 2)
	d2 := util.NewDate(2025, 1, 3)
	buckets := BucketByDate([]domain.Observation{
		{Asset: "A", Date: d2},
		{Asset: "B", Date: d1},
		{Asset: "C", Date: d2},
	})

	require.Len(t, buckets, 2)
	require.Equal(t, d1, buckets[0].Date)
	require.Equal(t, d2, buckets[1].Date)
	require.Equal(t, "A", buckets[1].Observations[0].Asset)
	require.Equal(t, "C", buckets[1].Observations[1].Asset)
}

func TestScoreExpression(t *testing.T) {
	score := NewScoreExpression("probUp - probDown")
	v, err := score(domain.Observation{
		Asset:         "A",
		Probabilities: &domain.ClassProbabilities{Down: 0.2, Flat: 0.3, Up: 0.5},
	})
	require.NoError(t, err)
	require.InDelta(t, 0.3, v, 1e-12)

	t.Run("integer result", func(t *testing.T) {
		v, err := NewScoreExpression("1 + 2")(domain.Observation{Asset: "A"})
		require.NoError(t, err)
		require.Equal(t, 3.0, v)
	})

	t.Run("undefined variable", func(t *testing.T) {
		_, err := NewScoreExpression("prediction * 2")(domain.Observation{Asset: "A"})
		require.Error(t, err)
	})

	t.Run("drives quantile ranking", func(t *testing.T) {
		c := QuantileConverter{TopPct: 0.5, BottomPct: 0.5, Score: NewScoreExpression("abs(prediction)")}
		weights, err := c.Convert(scoredObservations(map[string]float64{
			"A": -5, "B": 1,
		}))
		require.NoError(t, err)
		require.Equal(t, 1.0, weights["A"])
		require.Equal(t, -1.0, weights["B"])
	})
}
