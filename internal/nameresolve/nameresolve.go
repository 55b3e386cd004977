// Package nameresolve derives a person's likely full name from an email
// address. The result seeds search query variations; a wrong guess costs a
// wasted search, so every tier is best-effort and the resolver never errors.
package nameresolve

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/pkg/anthropic"
)

// Resolution method labels, recorded alongside the resolved name.
const (
	MethodProvided       = "provided"
	MethodFirstAndDomain = "first_name_domain"
	MethodAI             = "ai"
	MethodFirstLast      = "first_last"
	MethodSeparators     = "separators"
	MethodUsernameDomain = "username_domain"
	MethodInitialSurname = "initial_surname"
	MethodUsernameOnly   = "username_only"
	MethodNone           = "none"
)

// nonPersonal local parts never resolve to a person.
var nonPersonal = map[string]struct{}{
	"admin": {}, "info": {}, "contact": {}, "hello": {}, "sales": {},
	"support": {}, "marketing": {}, "help": {}, "webmaster": {},
	"noreply": {}, "no-reply": {}, "team": {}, "office": {}, "billing": {},
	"mail": {}, "postmaster": {}, "jobs": {}, "career": {}, "hr": {},
	"service": {}, "services": {},
}

var (
	allDigits  = regexp.MustCompile(`^[0-9]+$`)
	separators = regexp.MustCompile(`[._-]`)
	digits     = regexp.MustCompile(`[0-9]`)
	alphaOnly  = regexp.MustCompile(`^[a-z]+$`)
)

var titleCaser = cases.Title(language.English)

const extractPrompt = `You will be given two inputs: an email address and a user-entered name.
Both are messy user input. Return the person's first and last name.
Patterns to handle:
- "mlindholm@hlcsweden.com, Marko" -> "Marko Lindholm" (the first letter of
  the email is the first name's initial)
- "ngeorges@pinnacleclimate.com, Nick" -> "Nick Georges"
- "steve.desalvo@kzf.com, Steve" -> "Steve Desalvo"
- Random strings like "igspam@wevalueprivacy.com, MindYourBusiness" or
  "qzmlnhgzwwuzgdhgv@poplk.com, ko" -> None
Output is parsed by a program, so be strict: respond with exactly "None"
when no name can be extracted, otherwise the capitalized first and last
name separated by a single space. No other text.`

// Resolver extracts names from email addresses, using a Claude call with
// deterministic fallbacks.
type Resolver struct {
	client anthropic.Client
	model  string
}

// New creates a Resolver. A nil client skips the AI tier and goes straight
// to the deterministic fallbacks.
func New(client anthropic.Client, model string) *Resolver {
	return &Resolver{client: client, model: model}
}

// Resolve returns the best-guess full name for the email and the method
// that produced it. An empty name with MethodNone is a valid outcome.
func (r *Resolver) Resolve(ctx context.Context, email, givenName string) (string, string) {
	if givenName != "" && strings.Contains(givenName, " ") {
		return givenName, MethodProvided
	}

	at := strings.Index(email, "@")
	if at < 0 {
		return "", MethodNone
	}
	username := strings.ToLower(email[:at])
	domain := domainSurname(email[at+1:])

	if _, ok := nonPersonal[username]; ok {
		return "", MethodNone
	}
	if len(username) < 2 || allDigits.MatchString(username) {
		return "", MethodNone
	}

	if givenName != "" && len(domain) > 2 {
		return givenName + " " + domain, MethodFirstAndDomain
	}

	if name := r.extractWithAI(ctx, email, givenName); name != "" {
		return name, MethodAI
	}

	return fallback(username, domain, givenName)
}

// domainSurname turns the first label of the domain into a capitalized
// stand-in surname.
func domainSurname(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return ""
	}
	return capitalize(label)
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// extractWithAI asks Claude to pull a name out of the email. Any failure
// returns empty so the deterministic tiers take over.
func (r *Resolver) extractWithAI(ctx context.Context, email, givenName string) string {
	if r.client == nil {
		return ""
	}

	temp := 0.2
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       r.model,
		MaxTokens:   50,
		System:      anthropic.BuildCachedSystemBlocks(extractPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: email + ", " + givenName}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("name extraction call failed", zap.Error(err))
		return ""
	}
	resp.Usage.LogCost(r.model, "name_extraction")

	if len(resp.Content) == 0 {
		return ""
	}
	text := strings.TrimSpace(resp.Content[0].Text)
	if text == "" || strings.EqualFold(text, "none") {
		return ""
	}
	return titleCaser.String(strings.ToLower(text))
}

// fallback derives a name from the local part alone. Tiers run in order
// and the first that produces a plausible name wins.
func fallback(username, domain, givenName string) (string, string) {
	if givenName != "" {
		if len(domain) > 2 {
			return givenName + " " + domain, MethodFirstAndDomain
		}
		return givenName + " User", MethodUsernameOnly
	}

	// first.last
	if parts := strings.Split(username, "."); len(parts) == 2 &&
		len(parts[0]) > 1 && len(parts[1]) > 1 {
		return capitalize(parts[0]) + " " + capitalize(parts[1]), MethodFirstLast
	}

	// Separator-structured usernames: split on . _ - and drop digits.
	if separators.MatchString(username) {
		clean := digits.ReplaceAllString(separators.ReplaceAllString(username, " "), "")
		parts := strings.Fields(clean)
		if len(parts) >= 2 {
			out := make([]string, len(parts))
			for i, p := range parts {
				out[i] = capitalize(p)
			}
			return strings.Join(out, " "), MethodSeparators
		}
		if len(parts) == 1 && domain != "" {
			return capitalize(parts[0]) + " " + domain, MethodUsernameDomain
		}
	}

	// jsmith -> "J. Smith"
	if len(username) > 1 && alphaOnly.MatchString(username) {
		if rest := username[1:]; len(rest) > 2 {
			return strings.ToUpper(username[:1]) + ". " + capitalize(rest), MethodInitialSurname
		}
	}

	if len(domain) > 2 && len(username) > 2 {
		return capitalize(username) + " " + domain, MethodUsernameDomain
	}

	if len(username) >= 3 {
		return capitalize(username) + " User", MethodUsernameOnly
	}

	return "", MethodNone
}
