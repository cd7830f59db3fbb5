package legacy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MigrationSource holds the free-text status fields the historical importer
// consumes from a work-package document: the current lane, the informal lane
// history older tooling appended, and a recoverable reviewer sign-off.
type MigrationSource struct {
	Lane     string   `yaml:"lane"`
	History  []string `yaml:"lane_history"`
	Reviewer string   `yaml:"reviewed_by"`
	Verdict  string   `yaml:"review_verdict"`
}

// ReadMigrationSource extracts the migration source fields from a document's
// front matter. Values are returned raw; alias resolution is the importer's
// concern.
func ReadMigrationSource(content []byte) (*MigrationSource, error) {
	meta, _, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}
	var src MigrationSource
	if err := yaml.Unmarshal(meta, &src); err != nil {
		return nil, fmt.Errorf("legacy: parse front matter: %w", err)
	}
	return &src, nil
}
