package rocketreach

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Account is a single RocketReach API account in the rotation pool.
type Account struct {
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
}

// accountsFile is the on-disk shape of the accounts list.
type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts reads the account pool from a YAML file.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "rocketreach: read accounts file")
	}

	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "rocketreach: parse accounts file")
	}

	for _, a := range f.Accounts {
		if a.Name == "" || a.APIKey == "" {
			return nil, eris.New("rocketreach: account entries need both name and api_key")
		}
	}
	return f.Accounts, nil
}
