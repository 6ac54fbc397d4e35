// Package chart shapes analysis rows into the label/value series consumed
// by the client-side renderers. Pixel rendering and export stay client-side.
package chart

import (
	"fmt"
	"strconv"

	"github.com/sheetlytics/apiserver/types"
)

// Series is the chart-ready projection of an analysis.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// BuildSeries projects rows onto the chosen axes: labels are the x-field
// values taken verbatim, values are the y-field values coerced to float64
// with unparseable cells falling back to 0.
func BuildSeries(rows []types.Row, xField, yField string) Series {
	series := Series{
		Labels: make([]string, 0, len(rows)),
		Values: make([]float64, 0, len(rows)),
	}
	for _, row := range rows {
		series.Labels = append(series.Labels, labelOf(row[xField]))
		series.Values = append(series.Values, valueOf(row[yField]))
	}
	return series
}

func labelOf(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func valueOf(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	case string:
		if number, err := strconv.ParseFloat(value, 64); err == nil {
			return number
		}
		return 0
	default:
		return 0
	}
}
