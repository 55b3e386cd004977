package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedhelmy006/nbo-linkedin-api/internal/model"
)

func newDefault() *Classifier {
	// Empty paths force the built-in lists.
	return New("", "")
}

func TestClassifyPersonalDomains(t *testing.T) {
	c := newDefault()

	for _, email := range []string{
		"john@gmail.com",
		"jane@yahoo.com",
		"someone@icloud.com",
		"x@mail.ru",
	} {
		typ, _ := c.Classify(email)
		assert.Equal(t, model.DomainPersonal, typ, email)
	}
}

func TestClassifyWorkDomains(t *testing.T) {
	c := newDefault()

	cases := map[string]string{
		"blake@sellsadvisors.com": "sellsadvisors.com",
		"ceo@acme.co":             "acme.co",
		"ops@example.net":         "example.net",
		"staff@agency.gov":        "agency.gov",
	}
	for email, wantDomain := range cases {
		typ, domain := c.Classify(email)
		assert.Equal(t, model.DomainWork, typ, email)
		assert.Equal(t, wantDomain, domain)
	}
}

func TestClassifyMailKeyword(t *testing.T) {
	c := newDefault()

	// "mail" in the domain reads as a hosting provider, but gmail itself
	// is excluded from that substring rule.
	typ, _ := c.Classify("me@fastmail.fm")
	assert.Equal(t, model.DomainPersonal, typ)

	typ, _ = c.Classify("me@emailcorp.com")
	assert.Equal(t, model.DomainPersonal, typ)
}

func TestClassifyProviderSubdomain(t *testing.T) {
	c := newDefault()

	typ, _ := c.Classify("user@yahoo.fr")
	assert.Equal(t, model.DomainPersonal, typ)

	typ, _ = c.Classify("user@something.outlook.de")
	assert.Equal(t, model.DomainPersonal, typ)
}

func TestClassifyEdu(t *testing.T) {
	c := newDefault()

	typ, _ := c.Classify("student@stanford.edu")
	assert.Equal(t, model.DomainPersonal, typ)

	typ, _ = c.Classify("prof@ox.edu.uk")
	assert.Equal(t, model.DomainPersonal, typ)
}

func TestClassifyCountryTLD(t *testing.T) {
	c := newDefault()

	// Business second-level under a country TLD is work.
	typ, _ := c.Classify("sales@widgets.co.uk")
	assert.Equal(t, model.DomainWork, typ)

	// Bare country TLD defaults to personal.
	typ, _ = c.Classify("hans@mueller.de")
	assert.Equal(t, model.DomainPersonal, typ)
}

func TestClassifyInvalid(t *testing.T) {
	c := newDefault()

	typ, domain := c.Classify("not-an-email")
	assert.Equal(t, model.DomainUnknown, typ)
	assert.Equal(t, "", domain)

	typ, _ = c.Classify("")
	assert.Equal(t, model.DomainUnknown, typ)
}

func TestClassifyLoadsListFiles(t *testing.T) {
	dir := t.TempDir()
	domains := filepath.Join(dir, "domains.txt")
	providers := filepath.Join(dir, "providers.txt")
	require.NoError(t, os.WriteFile(domains, []byte("# personal domains\nexample.xyz\n"), 0644))
	require.NoError(t, os.WriteFile(providers, []byte("freemailer\n"), 0644))

	c := New(domains, providers)

	typ, _ := c.Classify("user@example.xyz")
	assert.Equal(t, model.DomainPersonal, typ)

	typ, _ = c.Classify("user@freemailer.io")
	assert.Equal(t, model.DomainPersonal, typ)

	// gmail.com is no longer listed, but .com still classifies as work.
	typ, _ = c.Classify("user@gmail.com")
	assert.Equal(t, model.DomainWork, typ)
}

func TestClassifyMissingFilesFallBack(t *testing.T) {
	c := New("/does/not/exist.txt", "/also/missing.txt")

	typ, _ := c.Classify("user@gmail.com")
	assert.Equal(t, model.DomainPersonal, typ)
}
