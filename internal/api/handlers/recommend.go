package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/basket-insights/internal/api/middleware"
	"github.com/dvloznov/basket-insights/internal/assoc"
	"github.com/dvloznov/basket-insights/internal/dataset"
	"github.com/dvloznov/basket-insights/internal/habits"
	"github.com/dvloznov/basket-insights/internal/recommend"
)

// associationLimit caps how many mined pairings feed a recommendation.
const associationLimit = 10

// RecommendHandler handles gift recommendation endpoints.
type RecommendHandler struct {
	holder      *dataset.Holder
	recommender *recommend.Recommender
	defaults    assoc.Options
	window      WindowDefaults
	log         zerolog.Logger
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(holder *dataset.Holder, recommender *recommend.Recommender, defaults assoc.Options, window WindowDefaults, log zerolog.Logger) *RecommendHandler {
	return &RecommendHandler{
		holder:      holder,
		recommender: recommender,
		defaults:    defaults,
		window:      window,
		log:         log,
	}
}

// Recommend handles POST /api/recommendations
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	ds := h.holder.Get()
	start, end, err := habits.ParseWindow(h.window.Start, h.window.End)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	summary, err := ds.Analyzer.Analyze(req.UserID, start, end)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	report, err := ds.Engine.FrequentPairs(r.Context(), h.defaults)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	result, err := h.recommender.Recommend(r.Context(), req, profileFrom(summary), associationsFrom(report.Rules))
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Suggestions handles GET /api/suggestions/:id and serves the cross-sell
// listing that needs no model call.
func (h *RecommendHandler) Suggestions(w http.ResponseWriter, r *http.Request, rawUserID string) {
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "User ID must be an integer")
		return
	}

	ds := h.holder.Get()
	start, end, err := habits.ParseWindow(h.window.Start, h.window.End)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}
	summary, err := ds.Analyzer.Analyze(userID, start, end)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	report, err := ds.Engine.FrequentPairs(r.Context(), h.defaults)
	if err != nil {
		writeDomainError(w, h.log, err)
		return
	}

	suggestions := recommend.SmartSuggestions(profileFrom(summary), associationsFrom(report.Rules), 5)
	resp := map[string]interface{}{
		"user_id":     userID,
		"suggestions": suggestions,
		"count":       len(suggestions),
	}
	if summary.Message != "" {
		resp["message"] = summary.Message
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func profileFrom(s *habits.Summary) recommend.Profile {
	p := recommend.Profile{
		TotalOrders:    s.TotalOrders,
		AvgOrderAmount: s.AvgOrderAmount.String(),
	}
	for _, c := range s.FrequentCategories {
		p.TopCategories = append(p.TopCategories, recommend.CategoryPreference{
			Category:   c.Category,
			Percentage: c.Percentage,
		})
	}
	for _, fp := range s.FrequentProducts {
		p.FrequentProducts = append(p.FrequentProducts, fp.Label)
	}
	return p
}

func associationsFrom(rules []assoc.Rule) []recommend.Association {
	if len(rules) > associationLimit {
		rules = rules[:associationLimit]
	}
	out := make([]recommend.Association, 0, len(rules))
	for _, r := range rules {
		out = append(out, recommend.Association{
			CategoryA: r.CategoryA,
			CategoryB: r.CategoryB,
			Support:   r.Support,
		})
	}
	return out
}
