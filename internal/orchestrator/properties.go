package orchestrator

import "strings"

const seedKey = "level-seed="

// ApplySeed returns props with every level-seed line set to seed.
// When no such line exists one is appended. Line endings are preserved.
func ApplySeed(props, seed string) string {
	eol := "\n"
	if strings.Contains(props, "\r\n") {
		eol = "\r\n"
	}

	lines := strings.Split(props, "\n")
	found := false
	for i, line := range lines {
		trimmed := strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(trimmed, seedKey) {
			continue
		}

		lines[i] = seedKey + seed
		if len(trimmed) != len(line) {
			lines[i] += "\r"
		}
		found = true
	}

	if found {
		return strings.Join(lines, "\n")
	}

	if props != "" && !strings.HasSuffix(props, "\n") {
		props += eol
	}

	return props + seedKey + seed + eol
}
