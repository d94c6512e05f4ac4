// Package manifest parses the multi-project sweep manifest.
//
// A manifest names the Pages projects a single invocation should sweep, with
// an optional account id per project falling back to the manifest-wide one.
// Parsing is pure: callers read the file and hand the bytes in.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyManifest is returned for blank input.
	ErrEmptyManifest = errors.New("manifest is empty")

	// ErrNoProjects is returned when the manifest lists no projects.
	ErrNoProjects = errors.New("manifest lists no projects")

	// ErrMissingName is returned when a project entry has no name.
	ErrMissingName = errors.New("project entry is missing a name")

	// ErrMissingAccount is returned when a project resolves to no account id.
	ErrMissingAccount = errors.New("project has no account id and the manifest sets no default")

	// ErrDuplicateProject is returned when the same project appears twice
	// under the same account.
	ErrDuplicateProject = errors.New("duplicate project entry")
)

// =============================================================================
// Types
// =============================================================================

// Manifest is the parsed sweep manifest. After Parse, every project carries
// a resolved account id.
type Manifest struct {
	AccountID string    `yaml:"account_id"` // default for projects without their own
	Projects  []Project `yaml:"projects"`
}

// Project is one Pages project to sweep.
type Project struct {
	Name      string `yaml:"name"`
	AccountID string `yaml:"account_id"`
}

// =============================================================================
// Parsing
// =============================================================================

// Parse decodes and validates manifest YAML. Unknown fields are rejected so
// typos fail loudly instead of silently skipping projects. Project account
// ids default to the manifest-wide account id.
func Parse(content []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyManifest
	}

	var m Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyManifest
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if len(m.Projects) == 0 {
		return nil, ErrNoProjects
	}

	seen := make(map[string]bool, len(m.Projects))
	for i := range m.Projects {
		p := &m.Projects[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("projects[%d]: %w", i, ErrMissingName)
		}
		if p.AccountID == "" {
			p.AccountID = m.AccountID
		}
		if p.AccountID == "" {
			return nil, fmt.Errorf("projects[%d] %q: %w", i, p.Name, ErrMissingAccount)
		}
		key := p.AccountID + "/" + p.Name
		if seen[key] {
			return nil, fmt.Errorf("projects[%d] %q: %w", i, p.Name, ErrDuplicateProject)
		}
		seen[key] = true
	}

	return &m, nil
}
