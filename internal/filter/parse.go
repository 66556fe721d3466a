package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads rules from a file and appends them to the chain.
// Format:
//   - pattern  → exclude
//   + pattern  → include
//   # comment  → skip
//   blank line → skip
//   no prefix  → exclude
func (c *Chain) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open filter file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		include := false
		pattern := line

		switch {
		case strings.HasPrefix(line, "+ "):
			include = true
			pattern = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "- "):
			pattern = strings.TrimSpace(line[2:])
		}

		var addErr error
		if include {
			addErr = c.AddInclude(pattern)
		} else {
			addErr = c.AddExclude(pattern)
		}
		if addErr != nil {
			return fmt.Errorf("filter file %s line %d: %w", path, lineNum, addErr)
		}
	}

	return scanner.Err()
}
