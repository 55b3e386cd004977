package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// legacyCookieFile is the pre-pool cookie bundle name kept as a fallback so
// existing deployments keep working after pools were introduced.
const legacyCookieFile = "cookies.json"

// CookieStore loads browser cookie bundles from a directory. Each pool has
// its own file named "<pool>.json".
type CookieStore struct {
	dir string
}

// NewCookieStore creates a CookieStore rooted at dir.
func NewCookieStore(dir string) *CookieStore {
	return &CookieStore{dir: dir}
}

// Load returns the cookie bundle for the named pool. When the pool's file is
// missing it falls back to the legacy cookies.json.
func (s *CookieStore) Load(pool string) (json.RawMessage, error) {
	path := filepath.Join(s.dir, pool+".json")
	if _, err := os.Stat(path); err != nil {
		legacy := filepath.Join(s.dir, legacyCookieFile)
		zap.L().Info("pool cookie file missing, trying legacy bundle",
			zap.String("pool", pool),
			zap.String("fallback", legacy))
		path = legacy
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: read cookies %s", path)
	}

	var cookies []json.RawMessage
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, eris.Wrapf(err, "scraper: parse cookies %s", path)
	}
	if len(cookies) == 0 {
		return nil, eris.Errorf("scraper: cookie bundle %s is empty", path)
	}
	return json.RawMessage(data), nil
}
