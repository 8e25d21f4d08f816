package calculator

import (
	"sort"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/util"
)

// AggregatePortfolio builds one PortfolioDay per date present in
// rows. the mean is taken over every asset present that date, so
// idle assets dilute it. compounding runs over all dates
func AggregatePortfolio(rows []domain.StrategyRow) []domain.PortfolioDay {
	index := map[string]int{}
	days := []domain.PortfolioDay{}
	for _, r := range rows {
		key := util.FormatDate(r.Date)
		i, ok := index[key]
		if !ok {
			i = len(days)
			index[key] = i
			days = append(days, domain.PortfolioDay{Date: r.Date})
		}
		days[i].TotalReturn += r.StrategyReturn
		days[i].TotalPositionCount++
		if r.Traded {
			days[i].ActivePositionCount++
		}
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})

	growth := 1.0
	for i := range days {
		days[i].MeanReturn = days[i].TotalReturn / float64(days[i].TotalPositionCount)
		growth *= 1 + days[i].MeanReturn
		days[i].CumulativeReturn = growth - 1
	}

	return days
}

// MaxDrawdown is the most negative relative decline of the
// portfolio equity curve from its running peak. 0 for an empty or
// never-declining curve. once the peak itself is at or below zero
// capital is gone and the drawdown is -1
func MaxDrawdown(days []domain.PortfolioDay) float64 {
	worst := 0.0
	var peak float64
	for i, d := range days {
		equity := 1 + d.CumulativeReturn
		if i == 0 || equity > peak {
			peak = equity
		}
		dd := -1.0
		if peak > 0 {
			dd = (equity - peak) / peak
		}
		if dd < worst {
			worst = dd
		}
	}
	return worst
}
