package vars

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVer(t *testing.T) {
	b := Ver()
	assert.Equal(t, Version, b.Version)
	assert.Equal(t, Commit, b.Commit)
}

func TestFprint(t *testing.T) {
	var buf bytes.Buffer
	Fprint(&buf)
	assert.Equal(t, "speedrun dev (commit unknown, revision 0, built 1970-01-01T00:00:00Z)\n", buf.String())
}
