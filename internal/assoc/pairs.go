package assoc

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/basket-insights/internal/domain"
)

// Default mining thresholds.
const (
	DefaultMinSupport    = 0.001
	DefaultMinConfidence = 0.03
)

// Options control one FrequentPairs run.
type Options struct {
	// MinSupport is the co-occurrence floor for a pair to be admitted.
	MinSupport float64
	// MinConfidence admits a pair when at least one direction reaches it.
	MinConfidence float64
	// Workers > 1 evaluates pairs on a worker pool. Output is identical to
	// the sequential run.
	Workers int
}

// DefaultOptions returns the standard thresholds with sequential evaluation.
func DefaultOptions() Options {
	return Options{
		MinSupport:    DefaultMinSupport,
		MinConfidence: DefaultMinConfidence,
		Workers:       1,
	}
}

// Rule is one admitted category pair with its metrics. The pair is unordered;
// CategoryA is the one indexed first.
type Rule struct {
	CategoryA      string  `json:"category_a"`
	CategoryB      string  `json:"category_b"`
	Support        float64 `json:"support"`
	ConfidenceAToB float64 `json:"confidence_a_to_b"`
	ConfidenceBToA float64 `json:"confidence_b_to_a"`
	Lift           float64 `json:"lift"`
	Transactions   int     `json:"transactions"`
}

// Report carries the admitted rules plus run diagnostics.
type Report struct {
	Rules []Rule `json:"rules"`

	PairsEvaluated int `json:"pairs_evaluated"`
	SupportPass    int `json:"support_pass"`
	ConfidencePass int `json:"confidence_pass"`

	// TopPairs are the ten strongest co-occurring pairs by support,
	// ignoring the thresholds. Useful when the admitted set comes back
	// empty and the caller wants to see how close the data got.
	TopPairs []Rule `json:"top_pairs"`
}

// candidate is one evaluated pair before threshold filtering.
type candidate struct {
	rule        Rule
	supportPass bool
	confPass    bool
}

// FrequentPairs evaluates every unordered category pair against the
// thresholds. Rules come back sorted by support descending; equal-support
// rules keep category first-seen order. An empty admitted set is a valid
// result, reported through the diagnostics rather than an error.
func (e *Engine) FrequentPairs(ctx context.Context, opts Options) (*Report, error) {
	if opts.MinSupport < 0 {
		return nil, domain.NewInputError("min_support", "must be non-negative, got %g", opts.MinSupport)
	}
	if opts.MinConfidence < 0 {
		return nil, domain.NewInputError("min_confidence", "must be non-negative, got %g", opts.MinConfidence)
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	pairs := e.enumeratePairs()
	results := make([]candidate, len(pairs))

	if workers == 1 {
		for k, p := range pairs {
			if k%1024 == 0 && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			results[k] = e.evaluate(p[0], p[1], opts)
		}
	} else {
		// Each worker strides the pair list and writes its own slots, so
		// the merged slice is ordered identically to the sequential run.
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for k := w; k < len(pairs); k += workers {
					if ctx.Err() != nil {
						return
					}
					results[k] = e.evaluate(pairs[k][0], pairs[k][1], opts)
				}
			}(w)
		}
		wg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return e.assemble(results), nil
}

// enumeratePairs lists every unordered category pair in first-seen order.
func (e *Engine) enumeratePairs() [][2]string {
	n := len(e.categories)
	pairs := make([][2]string, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, [2]string{e.categories[i], e.categories[j]})
		}
	}
	return pairs
}

func (e *Engine) evaluate(a, b string, opts Options) candidate {
	both := e.intersectionSize(a, b)
	rule := Rule{
		CategoryA:    a,
		CategoryB:    b,
		Transactions: both,
		Support:      float64(both) / float64(max(e.universe, 1)),
	}
	if na := len(e.members[a]); na > 0 {
		rule.ConfidenceAToB = float64(both) / float64(na)
	}
	if nb := len(e.members[b]); nb > 0 {
		rule.ConfidenceBToA = float64(both) / float64(nb)
	}
	rule.Lift = e.Lift(a, b)

	return candidate{
		rule:        rule,
		supportPass: rule.Support >= opts.MinSupport,
		confPass:    rule.ConfidenceAToB >= opts.MinConfidence || rule.ConfidenceBToA >= opts.MinConfidence,
	}
}

func (e *Engine) assemble(results []candidate) *Report {
	report := &Report{
		Rules:          make([]Rule, 0),
		PairsEvaluated: len(results),
	}

	seen := make([]Rule, 0, len(results))
	for _, c := range results {
		if c.supportPass {
			report.SupportPass++
		}
		if c.confPass {
			report.ConfidencePass++
		}
		if c.supportPass && c.confPass {
			report.Rules = append(report.Rules, c.rule)
		}
		if c.rule.Transactions > 0 {
			seen = append(seen, c.rule)
		}
	}

	bySupport := func(rules []Rule) {
		sort.SliceStable(rules, func(i, j int) bool {
			return rules[i].Support > rules[j].Support
		})
	}
	bySupport(report.Rules)
	bySupport(seen)
	if len(seen) > 10 {
		seen = seen[:10]
	}
	report.TopPairs = seen

	e.log.Debug().
		Int("pairs", report.PairsEvaluated).
		Int("admitted", len(report.Rules)).
		Msg("Pair mining finished")

	return report
}
