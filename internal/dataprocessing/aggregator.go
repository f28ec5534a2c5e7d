package dataprocessing

import (
	"sort"
	"strings"

	"casepulse/pkg/contracts/domain"
)

// Summarize counts records per status for the summary cards.
func Summarize(records []domain.CaseRecord) domain.CaseSummary {
	var summary domain.CaseSummary
	states := make(map[string]struct{})

	for _, r := range records {
		summary.Add(r.CurrentStatus)
		if r.DetectedState != "" {
			states[r.DetectedState] = struct{}{}
		}
	}

	summary.States = len(states)
	return summary
}

// FilterRecords returns the records matching filter. FilterAll returns the
// input slice unchanged.
func FilterRecords(records []domain.CaseRecord, filter domain.StatusFilter) []domain.CaseRecord {
	if filter.IsAll() {
		return records
	}

	out := make([]domain.CaseRecord, 0, len(records)/4)
	for _, r := range records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// CountByState counts matching records per detected state. Records with an
// empty state are left out. The result is ordered by count descending with
// ties broken by state name.
func CountByState(records []domain.CaseRecord, filter domain.StatusFilter) []domain.StateCount {
	counts := make(map[string]int)
	for _, r := range records {
		if r.DetectedState == "" || !filter.Matches(r) {
			continue
		}
		counts[r.DetectedState]++
	}

	out := make([]domain.StateCount, 0, len(counts))
	for state, n := range counts {
		out = append(out, domain.StateCount{State: state, Count: n})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].State < out[j].State
	})
	return out
}

// BreakdownByState builds the per-state table rows for matching records,
// ordered by total descending then state name.
func BreakdownByState(records []domain.CaseRecord, filter domain.StatusFilter) []domain.StateBreakdown {
	index := make(map[string]int)
	out := make([]domain.StateBreakdown, 0)

	for _, r := range records {
		if r.DetectedState == "" || !filter.Matches(r) {
			continue
		}
		i, ok := index[r.DetectedState]
		if !ok {
			i = len(out)
			index[r.DetectedState] = i
			out = append(out, domain.StateBreakdown{State: r.DetectedState})
		}
		out[i].Add(r.CurrentStatus)
	}

	SortBreakdown(out, domain.SortByTotal, domain.SortDesc)
	return out
}

// SortBreakdown sorts rows in place by key and order. Equal values keep a
// stable state-name order regardless of direction.
func SortBreakdown(rows []domain.StateBreakdown, key domain.SortKey, order domain.SortOrder) {
	value := func(b domain.StateBreakdown) int {
		switch key {
		case domain.SortByActive:
			return b.Active
		case domain.SortByRecovered:
			return b.Recovered
		case domain.SortByDeceased:
			return b.Deceased
		default:
			return b.Total
		}
	}
	desc := order == domain.SortDesc

	sort.SliceStable(rows, func(i, j int) bool {
		if key == domain.SortByState {
			c := strings.Compare(rows[i].State, rows[j].State)
			if desc {
				return c > 0
			}
			return c < 0
		}

		vi, vj := value(rows[i]), value(rows[j])
		if vi != vj {
			if desc {
				return vi > vj
			}
			return vi < vj
		}
		return rows[i].State < rows[j].State
	})
}

// BuildChart turns state counts into the bar chart figure.
func BuildChart(counts []domain.StateCount, filter domain.StatusFilter) domain.ChartFigure {
	x := make([]string, len(counts))
	y := make([]int, len(counts))
	for i, c := range counts {
		x[i] = c.State
		y[i] = c.Count
	}

	return domain.ChartFigure{
		Data: []domain.BarTrace{{
			Type: "bar",
			Name: filter.String(),
			X:    x,
			Y:    y,
		}},
		Layout: domain.ChartLayout{
			Title: domain.ChartText{Text: domain.ChartTitle},
			XAxis: domain.ChartAxis{Title: domain.ChartText{Text: "state"}, Automargin: true},
			YAxis: domain.ChartAxis{Title: domain.ChartText{Text: "count"}},
		},
	}
}
