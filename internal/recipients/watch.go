package recipients

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "vtreporter/pkg/logx"
)

// Watch reloads the recipients file when it is edited out-of-band (a deploy
// job, an operator with an editor). Events are debounced to ride out partial
// writes, and reloads with unchanged content are skipped via the stored hash.
// Our own persist calls also trip the watcher; the hash check makes those
// no-ops. Blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	s.log.Debug("recipients watcher started", logx.String("dir", dir), logx.String("file", file))

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, s.reload)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				s.log.Warn("recipients watch error", logx.Err(err))
			}
		}
	}
}

func (s *Store) reload() {
	list, err := readFile(s.path)
	if err != nil {
		s.log.Warn("recipients reload failed", logx.String("path", s.path), logx.Err(err))
		return
	}

	// Normalize like every other write path: a hand-edited file may omit a
	// key entirely, and the lists must stay JSON arrays, not null.
	if list.Recipients == nil {
		list.Recipients = []string{}
	}
	if list.BCC == nil {
		list.BCC = []string{}
	}

	data, err := marshalList(list)
	if err != nil {
		return
	}
	h := hashBytes(data)

	s.mu.Lock()
	if h == s.lastHash {
		s.mu.Unlock()
		return
	}
	s.list = list
	s.lastHash = h
	s.mu.Unlock()

	s.log.Info("recipients reloaded from file",
		logx.Int("recipients", len(list.Recipients)),
		logx.Int("bcc", len(list.BCC)),
	)
}
