// Package vars holds build metadata set through -ldflags -X.
package vars

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"

	// Commit is the git SHA the binary was built from.
	Commit = "unknown"

	// Revision is the commit count at build time.
	Revision = 0

	// BuildTime is the UTC build timestamp.
	BuildTime = time.Unix(0, 0).UTC()

	_revision  string
	_buildTime string
)

// Build is the version block reported by /healthz.
type Build struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Revision int    `json:"revision,omitempty"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
		BuildTime = t.UTC()
	}
}

// Ver returns the build block for health responses.
func Ver() Build {
	return Build{Version: Version, Commit: Commit, Revision: Revision}
}

// Print writes the --version output to stdout.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the --version output to w.
func Fprint(w io.Writer) {
	fmt.Fprintf(w, "speedrun %s (commit %s, revision %d, built %s)\n",
		Version, Commit, Revision, BuildTime.Format(time.RFC3339))
}
