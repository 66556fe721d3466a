// Package filter decides which entries are eligible for attribute toggling.
// Rules are rsync-style globs, evaluated in order, first match wins.
package filter

// Rule is a single include or exclude rule.
type Rule struct {
	Pattern *compiledPattern
	Include bool
}

// Chain holds an ordered list of rules plus size constraints.
type Chain struct {
	rules   []Rule
	minSize int64
	maxSize int64
}

// NewChain creates an empty chain. An empty chain includes everything.
func NewChain() *Chain {
	return &Chain{}
}

// AddExclude appends an exclude rule.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: false})
	return nil
}

// AddInclude appends an include rule.
func (c *Chain) AddInclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: true})
	return nil
}

// SetMinSize skips files smaller than n bytes.
func (c *Chain) SetMinSize(n int64) { c.minSize = n }

// SetMaxSize skips files larger than n bytes.
func (c *Chain) SetMaxSize(n int64) { c.maxSize = n }

// Empty reports whether the chain has no rules and no size constraints.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.minSize == 0 && c.maxSize == 0
}

// Match reports whether the entry should be toggled (true) or left alone.
// relPath is relative to the run root; size is ignored for directories.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}

	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}
	return true
}
