package store

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseProductIDs parses the composite product-id field of a purchase row.
// The field is either a single integer or a comma-separated list, optionally
// wrapped in quotes by the producer ("1001,1002,1001"). The result preserves
// order and repeats; repeats mean multiple units of the same product in one
// purchase.
func ParseProductIDs(field string) ([]int64, error) {
	s := strings.TrimSpace(field)
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil, fmt.Errorf("empty product id list")
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("product id token %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
