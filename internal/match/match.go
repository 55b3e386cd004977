// Package match picks the LinkedIn profile that best fits a person out of
// a list of search candidates, using a Claude judgment call.
package match

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/anthropic"
)

const matchPrompt = `You identify the correct LinkedIn profile URL for a person from their
information and search results. Given a person's details (email, name,
location) and a list of search results, find the most likely LinkedIn
profile URL for that person. The right answer is usually within the first
3-5 results. Respond with the full URL only when you are confident it is
correct, otherwise respond with exactly "null". No other text.`

// Matcher judges profile candidates against person details.
type Matcher struct {
	client anthropic.Client
	model  string
}

// New creates a Matcher.
func New(client anthropic.Client, model string) *Matcher {
	return &Matcher{client: client, model: model}
}

// matchInput is the JSON payload sent to the judgment call.
type matchInput struct {
	MemberInfo    map[string]string       `json:"member_info"`
	SearchResults []model.SearchCandidate `json:"search_results"`
}

// BestMatch returns the candidate URL judged to belong to the person, or
// empty when no confident match exists. Transport and parse failures are
// logged and count as no match.
func (m *Matcher) BestMatch(ctx context.Context, person model.LookupRequest, candidates []model.SearchCandidate) string {
	if m.client == nil || len(candidates) == 0 {
		return ""
	}

	info := make(map[string]string)
	for k, v := range map[string]string{
		"email":      person.Email,
		"first_name": person.FirstName,
		"last_name":  person.LastName,
		"city":       person.City,
		"state":      person.State,
		"country":    person.Country,
	} {
		if v != "" {
			info[k] = v
		}
	}

	payload, err := json.MarshalIndent(matchInput{MemberInfo: info, SearchResults: candidates}, "", "  ")
	if err != nil {
		zap.L().Warn("match payload marshal failed", zap.Error(err))
		return ""
	}

	resp, err := m.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     m.model,
		MaxTokens: 200,
		System:    anthropic.BuildCachedSystemBlocks(matchPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: string(payload)}},
	})
	if err != nil {
		zap.L().Warn("match judgment call failed", zap.Error(err))
		return ""
	}
	resp.Usage.LogCost(m.model, "profile_match")

	if len(resp.Content) == 0 {
		return ""
	}
	answer := strings.TrimSpace(resp.Content[0].Text)
	if answer == "" || strings.EqualFold(answer, "null") {
		return ""
	}
	if !strings.Contains(strings.ToLower(answer), "linkedin.com/in/") {
		zap.L().Warn("match returned a non-profile URL", zap.String("answer", answer))
		return ""
	}
	return answer
}
