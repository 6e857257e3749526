package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".turnstile"

// Paths holds resolved filesystem paths for turnstile data.
type Paths struct {
	Base   string // ~/.turnstile
	Config string // ~/.turnstile/config.yaml
	Data   string // ~/.turnstile/data
	Logs   string // ~/.turnstile/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If TURNSTILE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("TURNSTILE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// SessionDBPath is the SQLite database location under the data dir.
func (p Paths) SessionDBPath() string {
	return filepath.Join(p.Data, "sessions.db")
}
