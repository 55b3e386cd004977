package search

import (
	"strings"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// BuildSearchQuery builds the primary search query from the request.
// Components are joined with " + " and always end with "LinkedIn", which
// keeps engines from treating the email as a single exact phrase.
func BuildSearchQuery(req model.LookupRequest) string {
	req = req.Sanitize()

	var components []string
	if req.Email != "" {
		components = append(components, req.Email)
	}

	if req.FirstName != "" && req.LastName != "" {
		components = append(components, req.FirstName, req.LastName)
	} else if req.FirstName != "" {
		components = append(components, req.FirstName)
	}

	if req.State != "" {
		components = append(components, req.State)
	}
	if req.Country != "" {
		components = append(components, req.Country)
	}

	components = append(components, "LinkedIn")
	return strings.Join(components, " + ")
}

// BuildQueryVariations returns the ordered, deduplicated list of query
// variations to try, starting with the primary query.
func BuildQueryVariations(req model.LookupRequest) []string {
	req = req.Sanitize()

	primary := BuildSearchQuery(req)
	variations := []string{primary}

	add := func(q string) {
		for _, v := range variations {
			if v == q {
				return
			}
		}
		variations = append(variations, q)
	}

	if req.Email != "" {
		add(req.Email + " + LinkedIn")
	}

	if req.Email != "" && req.FirstName != "" {
		add(req.Email + " + " + req.FirstName + " + LinkedIn")
	}

	if req.Email != "" && req.FirstName != "" && req.LastName != "" &&
		(req.State != "" || req.Country != "") {
		parts := []string{req.Email, req.FirstName, req.LastName}
		if req.State != "" {
			parts = append(parts, req.State)
		}
		if req.Country != "" {
			parts = append(parts, req.Country)
		}
		parts = append(parts, "LinkedIn")
		add(strings.Join(parts, " + "))
	}

	if req.Email != "" {
		add(req.Email + " site:linkedin.com")
	}

	return variations
}
