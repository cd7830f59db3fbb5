// Package store provides the append-only event log, one per work stream.
// Records are newline-delimited JSON, each line independently parseable.
// The store performs no in-process locking: one invocation performs one
// append or one batch read, and cross-branch concurrency is reconciled by
// the merge resolver, never at write time.
package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/errors"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
)

const (
	// StatusDirName is the directory under the repository root holding all
	// per-stream status state.
	StatusDirName = ".wptrack/status"
	// LogFileName is the per-stream append-only event log.
	LogFileName = "events.jsonl"
	// SnapshotFileName is the per-stream materialized snapshot.
	SnapshotFileName = "snapshot.json"
)

// StreamDir returns the status directory for a work stream.
func StreamDir(root, stream string) string {
	return filepath.Join(root, filepath.FromSlash(StatusDirName), stream)
}

// ListStreams returns the ids of all work streams with status state under
// root, sorted for stable iteration. A missing status directory is an empty
// result, not an error.
func ListStreams(root string) ([]string, error) {
	statusDir := filepath.Join(root, filepath.FromSlash(StatusDirName))
	entries, err := os.ReadDir(statusDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStoreError("read status directory", err).WithPath(statusDir)
	}
	var streams []string
	for _, entry := range entries {
		if entry.IsDir() {
			streams = append(streams, entry.Name())
		}
	}
	sort.Strings(streams)
	return streams, nil
}

// RecordError reports a single log line that could not be parsed. The
// surrounding read continues; a malformed trailing record (for example from
// an interrupted append) is a reported condition, never a silent drop.
type RecordError struct {
	Line   int   // 1-based line number in the log
	Offset int64 // byte offset of the line start
	Err    error
}

// Error returns the formatted error message.
func (r *RecordError) Error() string {
	return fmt.Sprintf("line %d (offset %d): %v", r.Line, r.Offset, r.Err)
}

// Unwrap returns the underlying parse error.
func (r *RecordError) Unwrap() error { return r.Err }

// Store is the append-only event log for one work stream. It keeps a
// lazily-populated set of seen event ids for dedupe-on-append; the set is
// owned by this instance and filled by a single scan on first use.
type Store struct {
	root   string
	stream string
	seen   map[string]bool // nil until first populated
}

// New returns a Store for the given work stream under root. No filesystem
// state is created until the first append.
func New(root, stream string) *Store {
	return &Store{root: root, stream: stream}
}

// Stream returns the owning work stream id.
func (s *Store) Stream() string { return s.stream }

// Dir returns the stream's status directory.
func (s *Store) Dir() string { return StreamDir(s.root, s.stream) }

// LogPath returns the path of the event log file.
func (s *Store) LogPath() string { return filepath.Join(s.Dir(), LogFileName) }

// SnapshotPath returns the path of the materialized snapshot file.
func (s *Store) SnapshotPath() string { return filepath.Join(s.Dir(), SnapshotFileName) }

// Append writes one event to the log, creating missing parent directories on
// first use. Appending an event id already present in the log is rejected
// with ErrDuplicateEvent; dedupe is by id, never by content.
func (s *Store) Append(ev *event.StatusEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if err := s.ensureSeen(); err != nil {
		return err
	}
	if s.seen[ev.EventID] {
		return errors.NewStoreError(
			fmt.Sprintf("event %s already recorded", ev.EventID), errors.ErrDuplicateEvent,
		).WithWorkStream(s.stream).WithPath(s.LogPath())
	}

	line, err := event.Marshal(ev)
	if err != nil {
		return errors.NewStoreError("marshal event", err).WithWorkStream(s.stream)
	}

	if err := os.MkdirAll(s.Dir(), 0755); err != nil {
		return errors.NewStoreError("create stream directory", err).
			WithWorkStream(s.stream).WithPath(s.Dir())
	}

	f, err := os.OpenFile(s.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewStoreError("open event log", err).
			WithWorkStream(s.stream).WithPath(s.LogPath())
	}
	defer f.Close()

	// A torn final line from an interrupted append must not swallow the new
	// record; start a fresh line if the log does not end in a newline.
	if missing, err := s.missingTrailingNewline(); err != nil {
		return err
	} else if missing {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.NewStoreError("append event", err).
			WithWorkStream(s.stream).WithPath(s.LogPath())
	}
	if err := f.Sync(); err != nil {
		return errors.NewStoreError("sync event log", err).
			WithWorkStream(s.stream).WithPath(s.LogPath())
	}

	s.seen[ev.EventID] = true
	return nil
}

// Read returns all parseable events in file order. Corrupt records are
// skipped here; callers needing per-record failure positions use ReadRaw.
func (s *Store) Read() ([]*event.StatusEvent, error) {
	events, _, err := s.ReadRaw()
	return events, err
}

// ReadRaw returns all parseable events in file order plus a RecordError for
// every malformed line. A missing log yields no events and no error: a unit
// with no events is implicitly planned. Only an I/O failure on the file
// itself returns a non-nil error.
func (s *Store) ReadRaw() ([]*event.StatusEvent, []*RecordError, error) {
	f, err := os.Open(s.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.NewStoreError("open event log", err).
			WithWorkStream(s.stream).WithPath(s.LogPath())
	}
	defer f.Close()

	return decodeLog(f)
}

// missingTrailingNewline reports whether the log exists, is non-empty, and
// does not end with a newline.
func (s *Store) missingTrailingNewline() (bool, error) {
	f, err := os.Open(s.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.NewStoreError("open event log", err).
			WithWorkStream(s.stream).WithPath(s.LogPath())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, nil
	}
	return last[0] != '\n', nil
}

// ensureSeen populates the seen-id set with a single scan of the existing
// log. Corrupt lines contribute nothing to the set; their ids are unknown.
func (s *Store) ensureSeen() error {
	if s.seen != nil {
		return nil
	}
	s.seen = make(map[string]bool)
	events, _, err := s.ReadRaw()
	if err != nil {
		s.seen = nil
		return err
	}
	for _, ev := range events {
		s.seen[ev.EventID] = true
	}
	return nil
}

// DecodeLog parses newline-delimited event records from raw log content,
// reporting a RecordError per malformed line. The merge resolver uses this
// to parse branch-side logs that never touch the local filesystem.
func DecodeLog(content []byte) ([]*event.StatusEvent, []*RecordError) {
	events, recErrs, _ := decodeLog(bytes.NewReader(content))
	return events, recErrs
}

func decodeLog(r io.Reader) ([]*event.StatusEvent, []*RecordError, error) {
	var (
		events  []*event.StatusEvent
		recErrs []*RecordError
		offset  int64
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		lineLen := int64(len(line)) + 1 // +1 for the newline

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			offset += lineLen
			continue
		}

		ev, err := event.Unmarshal(trimmed)
		if err != nil {
			recErrs = append(recErrs, &RecordError{
				Line:   lineNum,
				Offset: offset,
				Err:    fmt.Errorf("%w: %v", errors.ErrCorruptRecord, err),
			})
			offset += lineLen
			continue
		}
		if err := ev.Validate(); err != nil {
			recErrs = append(recErrs, &RecordError{
				Line:   lineNum,
				Offset: offset,
				Err:    err,
			})
			offset += lineLen
			continue
		}

		events = append(events, ev)
		offset += lineLen
	}
	if err := scanner.Err(); err != nil {
		return events, recErrs, errors.NewStoreError("scan event log", err)
	}
	return events, recErrs, nil
}
