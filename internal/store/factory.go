package store

import "fmt"

// OpenFunc is the signature shared by the sqlite and pg factories.
// Declared here so cmd wiring can select a backend without importing
// both driver packages at every call site.
type OpenFunc func(dsnOrPath string) (*Stores, error)

// Select picks the backend path/DSN for the configured mode.
func (c StoreConfig) Select() (backend, target string, err error) {
	switch c.Mode {
	case "", "standalone":
		if c.SQLitePath == "" {
			return "", "", fmt.Errorf("standalone mode requires a sqlite path")
		}
		return "sqlite", c.SQLitePath, nil
	case "managed":
		if c.PostgresDSN == "" {
			return "", "", fmt.Errorf("managed mode requires KAKAK_POSTGRES_DSN")
		}
		return "pg", c.PostgresDSN, nil
	default:
		return "", "", fmt.Errorf("unknown database mode %q", c.Mode)
	}
}
