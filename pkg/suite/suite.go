// Package suite loads and runs batches of denial constraint checks described
// in a YAML file.
package suite

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapdc/pkg/dc"
	"github.com/leapstack-labs/leapdc/pkg/table"
	"github.com/leapstack-labs/leapdc/pkg/verify"
)

// DefaultFile is the suite file looked up when none is given.
const DefaultFile = "leapdc-suite.yaml"

// ErrNoChecks is returned for a suite without checks.
var ErrNoChecks = errors.New("suite has no checks")

// Defaults apply to every check that does not override them.
type Defaults struct {
	Delimiter     string `yaml:"delimiter"`
	Header        *bool  `yaml:"header"`
	MaxViolations int    `yaml:"max_violations"`
	Strategy      string `yaml:"strategy"`
}

// Check is one constraint verified against one CSV file.
type Check struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Table         string `yaml:"table"`
	Constraint    string `yaml:"constraint"`
	Delimiter     string `yaml:"delimiter"`
	Header        *bool  `yaml:"header"`
	MaxViolations *int   `yaml:"max_violations"`
	Strategy      string `yaml:"strategy"`

	// Resolved by Load.
	Source table.Source    `yaml:"-"`
	DC     *dc.DC          `yaml:"-"`
	Force  verify.Strategy `yaml:"-"`
}

// Suite is a parsed suite file.
type Suite struct {
	Path     string   `yaml:"-"`
	Defaults Defaults `yaml:"defaults"`
	Checks   []Check  `yaml:"checks"`
}

// Load reads and validates a suite file. Table paths are resolved relative
// to the file's directory.
func Load(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open suite: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := Parse(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

// Parse decodes a suite from r. Relative table paths are joined to baseDir.
// Unknown keys are rejected.
func Parse(r io.Reader, baseDir string) (*Suite, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoChecks
		}
		return nil, fmt.Errorf("invalid suite: %w", err)
	}

	if err := s.resolve(baseDir); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Suite) resolve(baseDir string) error {
	if len(s.Checks) == 0 {
		return ErrNoChecks
	}

	seen := make(map[string]int, len(s.Checks))
	for i := range s.Checks {
		c := &s.Checks[i]
		if c.Name == "" {
			return fmt.Errorf("check %d: name is required", i+1)
		}
		if prev, ok := seen[c.Name]; ok {
			return fmt.Errorf("check %d: duplicate name %q (first used by check %d)", i+1, c.Name, prev+1)
		}
		seen[c.Name] = i

		if c.Table == "" {
			return fmt.Errorf("check %q: table is required", c.Name)
		}
		if c.Constraint == "" {
			return fmt.Errorf("check %q: constraint is required", c.Name)
		}

		d, err := dc.Parse(c.Constraint)
		if err != nil {
			return fmt.Errorf("check %q: %w", c.Name, err)
		}
		c.DC = d

		delim, err := table.ParseDelimiter(first(c.Delimiter, s.Defaults.Delimiter))
		if err != nil {
			return fmt.Errorf("check %q: %w", c.Name, err)
		}
		header := true
		switch {
		case c.Header != nil:
			header = *c.Header
		case s.Defaults.Header != nil:
			header = *s.Defaults.Header
		}

		path := c.Table
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		c.Source = table.Source{Path: path, Delimiter: delim, HasHeader: header}

		strategy, err := verify.ParseStrategy(first(c.Strategy, s.Defaults.Strategy))
		if err != nil {
			return fmt.Errorf("check %q: %w", c.Name, err)
		}
		c.Force = strategy
	}
	return nil
}

// Limit returns the violation cap for c, falling back to the suite default.
func (s *Suite) Limit(c *Check) int {
	if c.MaxViolations != nil {
		return *c.MaxViolations
	}
	return s.Defaults.MaxViolations
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
