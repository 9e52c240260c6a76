package assoc

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"category_a",
	"category_b",
	"support",
	"confidence_a_to_b",
	"confidence_b_to_a",
	"lift",
}

// WriteCSV writes rules as a header plus one row per rule, metrics in
// 4-decimal fixed point. The writer is flushed before returning.
func WriteCSV(w io.Writer, rules []Rule) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: write header: %w", err)
	}
	for _, r := range rules {
		row := []string{
			r.CategoryA,
			r.CategoryB,
			fixed4(r.Support),
			fixed4(r.ConfidenceAToB),
			fixed4(r.ConfidenceBToA),
			fixed4(r.Lift),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("WriteCSV: write rule %s/%s: %w", r.CategoryA, r.CategoryB, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

func fixed4(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
