// Package recommend produces gift ideas for a shopper by combining their
// purchase profile with mined category associations and a Gemini call.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/basket-insights/internal/domain"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.0-flash"

// RecipientSelf marks a request where the shopper buys for themselves; every
// other recipient value requires a detail describing who they are.
const RecipientSelf = "self"

// Request describes one gift recommendation query.
type Request struct {
	// UserID selects whose purchase profile grounds the ideas.
	UserID int64 `json:"user_id"`

	// Recipient is who the gift is for ("self", "partner", "friend", ...).
	Recipient string `json:"recipient"`

	// RecipientDetail describes the recipient. Required unless Recipient
	// is "self".
	RecipientDetail string `json:"recipient_detail,omitempty"`

	// Requirement is what the gift should achieve, free text.
	Requirement string `json:"requirement"`

	// Budget is the spending ceiling in the catalog currency. Optional;
	// when omitted the shopper's average order amount stands in for it.
	Budget float64 `json:"budget,omitempty"`
}

// Validate rejects requests the model call cannot act on.
func (r *Request) Validate() error {
	if r.UserID <= 0 {
		return domain.NewInputError("user_id", "must be a positive integer, got %d", r.UserID)
	}
	if r.Budget < 0 {
		return domain.NewInputError("budget", "must be positive when provided, got %g", r.Budget)
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return domain.NewInputError("recipient", "must not be empty")
	}
	if r.Recipient != RecipientSelf && strings.TrimSpace(r.RecipientDetail) == "" {
		return domain.NewInputError("recipient_detail", "required when recipient is %q", r.Recipient)
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Requirement)) < 3 {
		return domain.NewInputError("requirement", "must be at least 3 characters")
	}
	return nil
}

// Profile is the purchase-behavior input, plain data so callers can fill it
// from any source.
type Profile struct {
	TotalOrders      int
	AvgOrderAmount   string
	TopCategories    []CategoryPreference
	FrequentProducts []string
}

// CategoryPreference is one preferred category with its share of purchases.
type CategoryPreference struct {
	Category   string
	Percentage float64
}

// Association is one mined category pairing, plain data.
type Association struct {
	CategoryA string
	CategoryB string
	Support   float64
}

// Idea is one structured gift suggestion from the model.
type Idea struct {
	Title          string  `json:"title"`
	Category       string  `json:"category"`
	Reason         string  `json:"reason"`
	EstimatedPrice float64 `json:"estimated_price"`
}

// Result carries the parsed ideas. Raw holds the unparsed model text when
// the response could not be decoded as JSON.
type Result struct {
	Ideas []Idea `json:"ideas"`
	Raw   string `json:"raw,omitempty"`
}

// Recommender calls Gemini with a profile-grounded prompt.
type Recommender struct {
	model string
	log   zerolog.Logger
}

// NewRecommender builds a recommender for the given model name. An empty
// name selects DefaultModelName.
func NewRecommender(model string, log zerolog.Logger) *Recommender {
	if model == "" {
		model = DefaultModelName
	}
	return &Recommender{model: model, log: log}
}

// Recommend validates the request, prompts the model, and parses its JSON
// reply. A reply that is not valid JSON is returned raw rather than failing
// the request.
func (r *Recommender) Recommend(ctx context.Context, req Request, profile Profile, assocs []Association) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(req, profile, assocs)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("Recommend: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Recommend: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Recommend: empty response from model")
	}

	clean := cleanModelJSON(rawText)

	var ideas []Idea
	if err := json.Unmarshal([]byte(clean), &ideas); err != nil {
		r.log.Warn().Err(err).Msg("Model reply is not valid JSON, returning raw text")
		return &Result{Raw: rawText}, nil
	}

	return &Result{Ideas: ideas}, nil
}

// buildPrompt renders the model instructions: shopper profile, mined
// pairings, and the gift constraints, with a strict-JSON output contract.
func buildPrompt(req Request, profile Profile, assocs []Association) string {
	var b strings.Builder

	b.WriteString("You are a gift recommendation assistant for an online grocery and lifestyle store.\n\n")

	b.WriteString("Shopper profile:\n")
	fmt.Fprintf(&b, "- total orders in the analysis window: %d\n", profile.TotalOrders)
	if profile.AvgOrderAmount != "" {
		fmt.Fprintf(&b, "- average order amount: %s\n", profile.AvgOrderAmount)
	}
	for _, c := range profile.TopCategories {
		fmt.Fprintf(&b, "- buys %s (%.1f%% of purchases)\n", c.Category, c.Percentage)
	}
	if len(profile.FrequentProducts) > 0 {
		fmt.Fprintf(&b, "- frequently repurchased: %s\n", strings.Join(profile.FrequentProducts, ", "))
	}

	if len(assocs) > 0 {
		b.WriteString("\nCategories often bought together by similar shoppers:\n")
		for _, a := range assocs {
			fmt.Fprintf(&b, "- %s with %s (support %.4f)\n", a.CategoryA, a.CategoryB, a.Support)
		}
	}

	b.WriteString("\nTask:\n")
	if req.Recipient == RecipientSelf {
		b.WriteString("- Suggest gifts the shopper would buy for themselves.\n")
	} else {
		fmt.Fprintf(&b, "- Suggest gifts for the shopper's %s: %s\n", req.Recipient, req.RecipientDetail)
	}
	fmt.Fprintf(&b, "- The gift should satisfy: %s\n", strings.TrimSpace(req.Requirement))
	switch {
	case req.Budget > 0:
		fmt.Fprintf(&b, "- Stay within a budget of %.2f.\n\n", req.Budget)
	case profile.AvgOrderAmount != "":
		fmt.Fprintf(&b, "- No budget was given; use the shopper's average order amount of %s as the budget reference.\n\n", profile.AvgOrderAmount)
	default:
		b.WriteString("\n")
	}

	b.WriteString("Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
		"Output a JSON array of 3 to 5 objects, each with these fields:\n" +
		"- \"title\": string\n" +
		"- \"category\": string\n" +
		"- \"reason\": string, one sentence tying the idea to the profile\n" +
		"- \"estimated_price\": number\n\n" +
		"Return ONLY valid raw JSON.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"[\" and end with \"]\".\n")

	return b.String()
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If there is still junk around the JSON array, keep only the first '['
	// through the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
