// Package legacy regenerates the pre-migration status representation from a
// materialized snapshot: the per-unit lane field in work-package document
// front matter, and the rendered status table inside the stream's tasks
// document. Regeneration is strictly one-way; after read-cutover the output
// is a pure rendering and manual edits to it are drift for the validator to
// report, never data to merge back.
package legacy

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/lane"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("legacy: missing front matter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("legacy: malformed front matter")
)

const (
	laneKey        = "lane"
	laneUpdatedKey = "lane_updated"
	timeLayout     = "2006-01-02T15:04:05Z"
)

// splitFrontMatter separates a document into its front-matter block and body.
func splitFrontMatter(content []byte) (meta, body []byte, err error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return nil, nil, ErrMalformedFrontMatter
	}
	return parts[0], parts[1], nil
}

// ReadLane extracts the raw lane value from a work-package document's front
// matter. The value is returned unresolved so callers can distinguish a
// persisted alias (a data-integrity finding) from a canonical lane.
func ReadLane(content []byte) (string, error) {
	meta, _, err := splitFrontMatter(content)
	if err != nil {
		return "", err
	}
	var fields struct {
		Lane string `yaml:"lane"`
	}
	if err := yaml.Unmarshal(meta, &fields); err != nil {
		return "", fmt.Errorf("legacy: parse front matter: %w", err)
	}
	return fields.Lane, nil
}

// UpdateFrontMatter rewrites only the lane and lane_updated keys of a
// work-package document, preserving every other front-matter key (and their
// order) and the document body untouched. The YAML node API is used so
// unknown keys authored by other tools survive the rewrite.
func UpdateFrontMatter(content []byte, l lane.Lane, at time.Time) ([]byte, error) {
	meta, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(meta, &doc); err != nil {
		return nil, fmt.Errorf("legacy: parse front matter: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, ErrMalformedFrontMatter
	}
	mapping := doc.Content[0]

	setScalar(mapping, laneKey, l.String())
	setScalar(mapping, laneUpdatedKey, at.UTC().Format(timeLayout))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("legacy: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("legacy: encode front matter: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("---\n")
	out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	out.WriteString("\n---\n")
	out.Write(body)
	return out.Bytes(), nil
}

// setScalar updates the value of key in a YAML mapping node, appending the
// key if it is not present.
func setScalar(mapping *yaml.Node, key, value string) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1].SetString(value)
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valNode := &yaml.Node{Kind: yaml.ScalarNode}
	valNode.SetString(value)
	mapping.Content = append(mapping.Content, keyNode, valNode)
}
