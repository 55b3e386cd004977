package model

import "strings"

// Subscriber is a newsletter subscriber row as the lookup pipeline sees it.
type Subscriber struct {
	ID          int64  `json:"id"`
	Email       string `json:"email_address"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
}

// LookupRequest builds the lookup inputs for this subscriber. A full name
// takes precedence over the split name columns; a single-token full name is
// treated as a first name only.
func (s Subscriber) LookupRequest() LookupRequest {
	req := LookupRequest{
		Email:     s.Email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
	}
	if full := strings.TrimSpace(s.FullName); full != "" {
		parts := strings.Fields(full)
		req.FirstName = parts[0]
		req.LastName = ""
		if len(parts) > 1 {
			req.LastName = strings.Join(parts[1:], " ")
		}
	}
	return req.Sanitize()
}
