package domain

import (
	"fmt"
	"strings"
)

// ChartTitle is the title of the per-state bar chart.
const ChartTitle = "State Total Cases"

// ChartFigure is a Plotly figure. It marshals to the JSON shape that
// Plotly.newPlot accepts directly.
type ChartFigure struct {
	Data   []BarTrace  `json:"data"`
	Layout ChartLayout `json:"layout"`
}

// BarTrace is a single bar series.
type BarTrace struct {
	Type string   `json:"type"`
	Name string   `json:"name,omitempty"`
	X    []string `json:"x"`
	Y    []int    `json:"y"`
}

// ChartLayout carries the figure layout options used by the dashboard.
type ChartLayout struct {
	Title ChartText `json:"title"`
	XAxis ChartAxis `json:"xaxis"`
	YAxis ChartAxis `json:"yaxis"`
}

// ChartText wraps a text label.
type ChartText struct {
	Text string `json:"text"`
}

// ChartAxis describes one axis.
type ChartAxis struct {
	Title      ChartText `json:"title"`
	Automargin bool      `json:"automargin,omitempty"`
}

// SortKey names a sortable column of the state table.
type SortKey string

const (
	SortByState     SortKey = "state"
	SortByTotal     SortKey = "total"
	SortByActive    SortKey = "active"
	SortByRecovered SortKey = "recovered"
	SortByDeceased  SortKey = "deceased"
)

// SortOrder is the direction of a table sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortKey parses a table column name. The empty string sorts by total.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortByTotal, nil
	case SortByState, SortByTotal, SortByActive, SortByRecovered, SortByDeceased:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort column %q", s)
	}
}

// ParseSortOrder parses a sort direction. The empty string picks the natural
// direction for key: ascending for state names, descending for counts.
func ParseSortOrder(s string, key SortKey) (SortOrder, error) {
	switch order := SortOrder(strings.ToLower(strings.TrimSpace(s))); order {
	case "":
		if key == SortByState {
			return SortAsc, nil
		}
		return SortDesc, nil
	case SortAsc, SortDesc:
		return order, nil
	default:
		return "", fmt.Errorf("unknown sort order %q", s)
	}
}
