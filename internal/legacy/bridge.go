package legacy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

const (
	// BeginMarker and EndMarker fence the generated status section inside
	// the stream's tasks document. Everything between them is regenerated
	// wholesale on every refresh.
	BeginMarker = "<!-- wptrack:status:begin -->"
	EndMarker   = "<!-- wptrack:status:end -->"

	// SpecsDirName is the root of the external document tree holding
	// per-stream work-package documents.
	SpecsDirName = "specs"

	tableTimeLayout = "2006-01-02 15:04 UTC"
)

// DocPath returns the work-package document path for a unit.
func DocPath(root, stream, unit string) string {
	return filepath.Join(root, SpecsDirName, stream, "work-packages", unit+".md")
}

// TasksPath returns the stream's tasks document path.
func TasksPath(root, stream string) string {
	return filepath.Join(root, SpecsDirName, stream, "tasks.md")
}

// Bridge regenerates the legacy representation for one work stream.
type Bridge struct {
	root   string
	stream string
}

// NewBridge returns a Bridge for the given work stream under root.
func NewBridge(root, stream string) *Bridge {
	return &Bridge{root: root, stream: stream}
}

// Refresh rewrites the legacy views from the snapshot: each unit's
// front-matter lane field and the tasks document's status section. Units
// without a work-package document are reported as warnings, not failures;
// the canonical log does not require the legacy tree to be complete.
func (b *Bridge) Refresh(snap *reduce.Snapshot) ([]string, error) {
	var warnings []string

	for _, unit := range snap.Units {
		docPath := DocPath(b.root, b.stream, unit.Unit)
		content, err := os.ReadFile(docPath)
		if err != nil {
			if os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("unit %s has no work-package document", unit.Unit))
				continue
			}
			return warnings, fmt.Errorf("read %s: %w", docPath, err)
		}

		updated, err := UpdateFrontMatter(content, unit.Lane, unit.LastTransitionAt)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("unit %s: %v", unit.Unit, err))
			continue
		}
		if bytes.Equal(updated, content) {
			continue
		}
		if err := store.WriteAtomic(docPath, updated, 0644); err != nil {
			return warnings, fmt.Errorf("rewrite %s: %w", docPath, err)
		}
	}

	if err := b.refreshTasks(snap); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// RenderSection renders the status table section, markers included. Output
// is deterministic: units are already sorted in the snapshot and timestamps
// are formatted in UTC.
func RenderSection(snap *reduce.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(BeginMarker)
	sb.WriteString("\n\n")
	sb.WriteString("| Work Package | Lane | Updated | Actor |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")
	for _, unit := range snap.Units {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
			unit.Unit, unit.Lane, unit.LastTransitionAt.UTC().Format(tableTimeLayout), unit.LastActor)
	}
	sb.WriteString("\n")
	sb.WriteString(EndMarker)
	return sb.String()
}

// refreshTasks replaces the fenced status section in tasks.md, creating the
// document with a minimal header when it does not exist yet.
func (b *Bridge) refreshTasks(snap *reduce.Snapshot) error {
	tasksPath := TasksPath(b.root, b.stream)
	section := RenderSection(snap)

	content, err := os.ReadFile(tasksPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", tasksPath, err)
		}
		content = []byte(fmt.Sprintf("# Tasks: %s\n\n%s\n", b.stream, section))
		return store.WriteAtomic(tasksPath, content, 0644)
	}

	updated, ok := replaceSection(string(content), section)
	if !ok {
		// No markers yet: append the section to the end of the document.
		updated = strings.TrimRight(string(content), "\n") + "\n\n" + section + "\n"
	}
	if updated == string(content) {
		return nil
	}
	return store.WriteAtomic(tasksPath, []byte(updated), 0644)
}

// replaceSection swaps the fenced region for the freshly rendered one.
func replaceSection(content, section string) (string, bool) {
	begin := strings.Index(content, BeginMarker)
	if begin < 0 {
		return content, false
	}
	end := strings.Index(content, EndMarker)
	if end < 0 || end < begin {
		return content, false
	}
	end += len(EndMarker)
	return content[:begin] + section + content[end:], true
}

// SectionDrift compares the persisted tasks-document section against a fresh
// rendering. It returns true (with detail) when the persisted section has
// been hand-edited or is stale. A missing document or missing markers is not
// drift; the bridge simply has not written there yet.
func SectionDrift(root, stream string, snap *reduce.Snapshot) (bool, string) {
	content, err := os.ReadFile(TasksPath(root, stream))
	if err != nil {
		return false, ""
	}
	begin := strings.Index(string(content), BeginMarker)
	end := strings.Index(string(content), EndMarker)
	if begin < 0 || end < 0 || end < begin {
		return false, ""
	}
	persisted := string(content)[begin : end+len(EndMarker)]
	fresh := RenderSection(snap)
	if persisted == fresh {
		return false, ""
	}
	return true, "tasks document status section does not match the snapshot"
}
