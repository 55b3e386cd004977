// Package classify determines whether an email address belongs to a work
// domain or a personal mail provider. The answer picks the lookup path:
// work emails go through web search first, personal emails go straight to
// the alternate provider.
package classify

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

// defaultDomains are known personal mail domains used when no list file
// is available.
var defaultDomains = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
	"protonmail.com", "icloud.com", "mail.com", "zoho.com",
	"yandex.com", "gmx.com", "tutanota.com", "mail.ru",
}

// defaultProviders are personal provider names matched against domain
// labels when the domain itself is not in the list.
var defaultProviders = []string{
	"gmail", "yahoo", "hotmail", "outlook", "live", "msn", "aol",
	"protonmail", "proton", "icloud", "zoho", "yandex", "gmx",
}

var businessTLDs = []string{".com", ".co", ".biz", ".ltd", ".pro", ".company", ".net"}

var countryTLDs = []string{".uk", ".ca", ".au", ".fr", ".de", ".it", ".es", ".jp"}

var businessPrefixes = []string{".co", ".com", ".biz", ".enterprise", ".business"}

// Classifier classifies email addresses as work or personal.
type Classifier struct {
	domainsFile   string
	providersFile string

	domains   map[string]struct{}
	providers []string
	pattern   *regexp.Regexp
}

// New builds a Classifier from the given list files. Missing or empty
// files fall back to the built-in defaults.
func New(domainsFile, providersFile string) *Classifier {
	c := &Classifier{
		domainsFile:   domainsFile,
		providersFile: providersFile,
	}
	c.Reload()
	return c
}

// Reload re-reads the domain and provider lists from disk.
func (c *Classifier) Reload() {
	c.domains = loadSet(c.domainsFile, defaultDomains)
	c.providers = loadList(c.providersFile, defaultProviders)
	c.pattern = compileProviderPattern(c.providers)

	zap.L().Debug("classifier loaded",
		zap.Int("domains", len(c.domains)),
		zap.Int("providers", len(c.providers)))
}

// loadSet reads one entry per line, lowercased, skipping blanks and
// comment lines. Falls back to defaults when the file is missing or empty.
func loadSet(path string, defaults []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, line := range loadList(path, defaults) {
		out[line] = struct{}{}
	}
	return out
}

func loadList(path string, defaults []string) []string {
	if path == "" {
		return defaults
	}
	f, err := os.Open(path)
	if err != nil {
		zap.L().Warn("classifier list file unavailable, using defaults",
			zap.String("path", path), zap.Error(err))
		return defaults
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil || len(out) == 0 {
		zap.L().Warn("classifier list file empty or unreadable, using defaults",
			zap.String("path", path), zap.Error(err))
		return defaults
	}
	return out
}

// compileProviderPattern builds a pattern that matches a provider name as
// a whole dot-separated label: "yahoo" matches "yahoo", "yahoo.fr" and
// "mail.yahoo.com" but not "notyahoo.com".
func compileProviderPattern(providers []string) *regexp.Regexp {
	var parts []string
	for _, p := range providers {
		if len(p) < 2 {
			continue
		}
		esc := regexp.QuoteMeta(p)
		parts = append(parts,
			"(^"+esc+"$|^"+esc+"\\.|\\."+esc+"$|\\."+esc+"\\.)")
	}
	if len(parts) == 0 {
		return regexp.MustCompile(`^$`)
	}
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// IsWork reports whether the email looks like a work address. The rules
// run in order and the first match wins.
func (c *Classifier) IsWork(email string) bool {
	at := strings.LastIndex(email, "@")
	if email == "" || at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])

	if _, ok := c.domains[domain]; ok {
		return false
	}

	// Mail-hosting style domains read as personal; gmail is covered above
	// but "mail" would otherwise match it as a substring.
	if strings.Contains(domain, "email") ||
		(strings.Contains(domain, "mail") && !strings.Contains(domain, "gmail")) {
		return false
	}

	// Match provider names against every domain suffix so subdomains of a
	// personal provider are caught too.
	labels := strings.Split(domain, ".")
	for i := range labels {
		if c.pattern.MatchString(strings.Join(labels[i:], ".")) {
			return false
		}
	}
	for _, p := range c.providers {
		if strings.Contains(domain, p) {
			return false
		}
	}

	if strings.Contains(domain, "enterprise.org") || strings.Contains(domain, "business.org") {
		return true
	}
	if strings.Contains(domain, "business.net") || strings.Contains(domain, "enterprise.net") {
		return true
	}

	if strings.HasSuffix(domain, ".edu") || strings.Contains(domain, ".edu.") {
		return false
	}
	if strings.HasSuffix(domain, ".gov") || strings.Contains(domain, ".gov.") {
		return true
	}

	for _, tld := range businessTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}

	for _, tld := range countryTLDs {
		if !strings.HasSuffix(domain, tld) {
			continue
		}
		for _, prefix := range businessPrefixes {
			if strings.Contains(domain, prefix+tld) {
				return true
			}
		}
	}

	return false
}

// Classify returns the domain type and the extracted domain.
func (c *Classifier) Classify(email string) (model.DomainType, string) {
	at := strings.LastIndex(email, "@")
	if email == "" || at < 0 {
		return model.DomainUnknown, ""
	}
	domain := strings.ToLower(email[at+1:])
	if c.IsWork(email) {
		return model.DomainWork, domain
	}
	return model.DomainPersonal, domain
}
