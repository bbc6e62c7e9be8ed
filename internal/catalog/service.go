package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "adventbot/pkg/logx"
)

// Service owns the current catalog snapshot for the process.
//
// The snapshot is loaded once at startup and replaced wholesale on Reload,
// either explicitly (/reload) or when the tracks file changes on disk.
type Service struct {
	path string
	log  logx.Logger

	snap atomic.Pointer[Snapshot]
}

func NewService(path string, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{path: path, log: log}
	s.snap.Store(NewSnapshot(nil))
	return s
}

// Snapshot returns the current catalog view. Never nil.
func (s *Service) Snapshot() *Snapshot { return s.snap.Load() }

// Reload re-reads the tracks file and swaps the snapshot.
// A missing file degrades to an empty catalog; a malformed file keeps the
// previous snapshot and returns the parse error.
func (s *Service) Reload() (int, error) {
	snap, err := LoadFile(s.path)
	if err != nil {
		s.log.Error("catalog reload failed, keeping previous snapshot", logx.String("path", s.path), logx.Err(err))
		return s.Snapshot().Len(), err
	}
	s.snap.Store(snap)
	if snap.Len() == 0 {
		s.log.Warn("catalog is empty", logx.String("path", s.path))
	} else {
		s.log.Info("catalog loaded", logx.String("path", s.path), logx.Int("tracks", snap.Len()))
	}
	return snap.Len(), nil
}

const (
	watchDebounce   = 500 * time.Millisecond
	watchRetryDelay = 5 * time.Second
)

// Watch reloads the catalog when the tracks file changes. It recreates the
// watcher on failure and returns only when ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = s.path
	}
	dir := filepath.Dir(abs)
	file := filepath.Base(abs)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		dir = "."
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	fire := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			_, _ = s.Reload()
		})
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			s.log.Warn("catalog watch init failed", logx.String("dir", dir), logx.Err(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(watchRetryDelay):
				continue
			}
		}

		s.log.Debug("catalog watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				// Compare by basename: editors often replace via rename.
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						fire()
					}
				}
			case werr, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if werr == nil {
					continue
				}
				s.log.Warn("catalog watch error", logx.String("dir", dir), logx.Err(werr))
				if strings.Contains(strings.ToLower(werr.Error()), "closed") {
					broken = true
				}
			}
		}
		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchRetryDelay):
		}
	}
}
