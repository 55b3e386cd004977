package match

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/anthropic"
)

type stubClient struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (s *stubClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.text}},
	}, nil
}

var candidates = []model.SearchCandidate{
	{Title: "John Smith - Acme | LinkedIn", URL: "https://www.linkedin.com/in/john-smith"},
	{Title: "John Smith - Blog", URL: "https://jsmith.dev"},
}

func TestBestMatchReturnsURL(t *testing.T) {
	stub := &stubClient{text: "https://www.linkedin.com/in/john-smith"}
	m := New(stub, "claude-haiku-4-5-20251001")

	url := m.BestMatch(context.Background(), model.LookupRequest{Email: "john@acme.com"}, candidates)
	assert.Equal(t, "https://www.linkedin.com/in/john-smith", url)
}

func TestBestMatchSendsOnlyNonEmptyFields(t *testing.T) {
	stub := &stubClient{text: "null"}
	m := New(stub, "claude-haiku-4-5-20251001")

	m.BestMatch(context.Background(), model.LookupRequest{
		Email:     "john@acme.com",
		FirstName: "John",
	}, candidates)

	var payload matchInput
	require.NoError(t, json.Unmarshal([]byte(stub.last.Messages[0].Content), &payload))
	assert.Equal(t, map[string]string{
		"email":      "john@acme.com",
		"first_name": "John",
	}, payload.MemberInfo)
	assert.Len(t, payload.SearchResults, 2)
}

func TestBestMatchNull(t *testing.T) {
	stub := &stubClient{text: "NULL"}
	m := New(stub, "claude-haiku-4-5-20251001")

	url := m.BestMatch(context.Background(), model.LookupRequest{Email: "a@b.com"}, candidates)
	assert.Empty(t, url)
}

func TestBestMatchRejectsNonProfileURL(t *testing.T) {
	stub := &stubClient{text: "https://www.linkedin.com/company/acme"}
	m := New(stub, "claude-haiku-4-5-20251001")

	url := m.BestMatch(context.Background(), model.LookupRequest{Email: "a@b.com"}, candidates)
	assert.Empty(t, url)
}

func TestBestMatchCallErrorIsNoMatch(t *testing.T) {
	stub := &stubClient{err: errors.New("overloaded")}
	m := New(stub, "claude-haiku-4-5-20251001")

	url := m.BestMatch(context.Background(), model.LookupRequest{Email: "a@b.com"}, candidates)
	assert.Empty(t, url)
}

func TestBestMatchNoCandidates(t *testing.T) {
	stub := &stubClient{text: "https://www.linkedin.com/in/ghost"}
	m := New(stub, "claude-haiku-4-5-20251001")

	url := m.BestMatch(context.Background(), model.LookupRequest{Email: "a@b.com"}, nil)
	assert.Empty(t, url)
	assert.Empty(t, stub.last.Messages)
}
