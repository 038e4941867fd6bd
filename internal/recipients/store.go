// Package recipients owns the report's recipient/BCC lists.
//
// The lists live in a single JSON file that is rewritten wholesale on every
// mutation; once the file exists it overrides the environment defaults. The
// in-memory copy is replaced atomically under the lock, never mutated in
// place, so readers (the mailer, the HTTP handlers) can never observe a
// half-applied update.
package recipients

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	logx "vtreporter/pkg/logx"
)

// ErrNoFields is returned when a mutation names neither recipients nor bcc.
var ErrNoFields = errors.New("provide recipients or bcc emails")

// List is the persisted shape.
type List struct {
	Recipients []string `json:"recipients"`
	BCC        []string `json:"bcc"`
}

// clone always yields non-nil slices so callers marshal the lists as JSON
// arrays, never null.
func (l List) clone() List {
	return List{
		Recipients: append([]string{}, l.Recipients...),
		BCC:        append([]string{}, l.BCC...),
	}
}

type Store struct {
	path string
	log  logx.Logger

	mu   sync.RWMutex
	list List

	// lastHash skips redundant reloads when the watcher fires without a
	// content change.
	lastHash uint64
}

// Open loads the list from the file at path, falling back to the provided
// defaults when the file does not exist yet. A corrupt file is logged and
// treated like a missing one.
func Open(path string, defaults List, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Store{path: path, log: log}

	list, err := readFile(path)
	switch {
	case err == nil:
		s.commit(list)
	case os.IsNotExist(err):
		s.commit(defaults.clone())
	default:
		log.Warn("recipients file unreadable, using defaults", logx.String("path", path), logx.Err(err))
		s.commit(defaults.clone())
	}
	return s, nil
}

// Get returns a copy of the current lists.
func (s *Store) Get() List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.clone()
}

// Add union-merges the given addresses into the lists, de-duplicating while
// preserving order, persists and returns the result. Adding an address that
// is already present is a no-op.
func (s *Store) Add(recipients, bcc []string) (List, error) {
	if len(recipients) == 0 && len(bcc) == 0 {
		return List{}, ErrNoFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := List{
		Recipients: union(s.list.Recipients, recipients),
		BCC:        union(s.list.BCC, bcc),
	}
	if err := s.persistLocked(next); err != nil {
		return List{}, err
	}
	return next.clone(), nil
}

// Remove filters the given addresses out of the lists, persists and returns
// the result. Removing an absent address is a no-op, never an error.
func (s *Store) Remove(recipients, bcc []string) (List, error) {
	if len(recipients) == 0 && len(bcc) == 0 {
		return List{}, ErrNoFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := List{
		Recipients: exclude(s.list.Recipients, recipients),
		BCC:        exclude(s.list.BCC, bcc),
	}
	if err := s.persistLocked(next); err != nil {
		return List{}, err
	}
	return next.clone(), nil
}

// persistLocked rewrites the whole file, then swaps the in-memory list.
// Callers hold s.mu.
func (s *Store) persistLocked(next List) error {
	if next.Recipients == nil {
		next.Recipients = []string{}
	}
	if next.BCC == nil {
		next.BCC = []string{}
	}

	data, err := marshalList(next)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create recipients dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write recipients file: %w", err)
	}

	s.list = next
	s.lastHash = hashBytes(data)
	return nil
}

func (s *Store) commit(list List) {
	if list.Recipients == nil {
		list.Recipients = []string{}
	}
	if list.BCC == nil {
		list.BCC = []string{}
	}
	s.mu.Lock()
	s.list = list
	if b, err := marshalList(list); err == nil {
		s.lastHash = hashBytes(b)
	}
	s.mu.Unlock()
}

func marshalList(l List) ([]byte, error) {
	if l.Recipients == nil {
		l.Recipients = []string{}
	}
	if l.BCC == nil {
		l.BCC = []string{}
	}
	return json.MarshalIndent(l, "", "  ")
}

func readFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return List{}, err
	}
	var l List
	if err := json.Unmarshal(data, &l); err != nil {
		return List{}, fmt.Errorf("unmarshal recipients: %w", err)
	}
	return l, nil
}

func union(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, v := range base {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range extra {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func exclude(base, drop []string) []string {
	del := make(map[string]struct{}, len(drop))
	for _, v := range drop {
		del[v] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, v := range base {
		if _, ok := del[v]; ok {
			continue
		}
		out = append(out, v)
	}
	return out
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
