// Package sqlitepath locates an existing tapestream SQLite database for
// commands that read one, such as "tapestream cleanup".
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/tapestream/pkg/dotdir"
)

const dbFile = "tapestream.db"

// ResolveSQLitePath returns override when set, then $TAPESTREAM_SQLITE, then
// the first existing candidate database file.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("TAPESTREAM_SQLITE")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("could not find tapestream SQLite database; pass --sqlite")
}

// DefaultPath is where "tapestream serve" keeps its database when no path is
// configured and one should persist across restarts.
func DefaultPath(configDir string) (string, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFile), nil
}

func sqliteCandidates() []string {
	candidates := []string{
		dbFile,
		filepath.Join(dotdir.DirName, dbFile),
	}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, dotdir.DirName, dbFile))
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "tapestream", dbFile))
	}

	return candidates
}
