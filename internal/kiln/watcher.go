package ik

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/sjc5/kiln/internal/transform"
)

func (s *DevSession) addDirs(root string) error {
	return filepath.WalkDir(root, func(walkedPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %w", fileset.ErrIO, walkedPath, err)
		}
		if !d.IsDir() {
			return nil
		}
		if walkedPath != root && s.skipDir(s.relPath(walkedPath)) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(walkedPath); err != nil {
			return fmt.Errorf("%w: watch %s: %w", fileset.ErrIO, walkedPath, err)
		}
		return nil
	})
}

func (s *DevSession) filesUnder(dir string) []string {
	var files []string
	filepath.WalkDir(dir, func(walkedPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if walkedPath != dir && s.skipDir(s.relPath(walkedPath)) {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, walkedPath)
		return nil
	})
	return files
}

func (s *DevSession) relPath(name string) string {
	rel, err := filepath.Rel(s.dirs.Source, name)
	if err != nil {
		return name
	}
	return filepath.ToSlash(rel)
}

func (s *DevSession) handleWatcherEmissions() {
	defer s.wg.Done()

	d := newDebouncer(debounceInterval, s.processBatchedEvents)
	defer d.stop()

	for {
		select {
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			d.addEvent(evt)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.c.Logger.Errorf("watcher error: %v", err)
		case <-s.done:
			return
		}
	}
}

func (s *DevSession) processBatchedEvents(events []fsnotify.Event) {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if s.stopping() {
		return
	}

	subs := s.c.subscriptions()
	triggered := make([]bool, len(subs))

	mark := func(name string, op fsnotify.Op) {
		rel := s.relPath(name)
		for i, sub := range subs {
			if !triggered[i] && s.triggers(sub, rel, op) {
				triggered[i] = true
			}
		}
	}

	for _, evt := range mergeEvents(events) {
		if !getIsDir(evt.Name) {
			mark(evt.Name, evt.Op)
			continue
		}
		if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
			continue
		}
		if err := s.addDirs(evt.Name); err != nil {
			s.c.Logger.Errorf("error: failed to add directory to watcher: %v", err)
			continue
		}
		// files written before the directory was watched produced no events
		for _, name := range s.filesUnder(evt.Name) {
			mark(name, fsnotify.Create)
		}
	}

	for i, sub := range subs {
		if triggered[i] {
			s.runSubscription(sub)
		}
	}
}

func (s *DevSession) runSubscription(sub Subscription) {
	for _, name := range sub.Stages {
		err := s.c.RunStage(name)
		if err == nil {
			continue
		}
		if transform.IsTransformError(err) && !errors.Is(err, fileset.ErrIO) {
			s.c.Logger.Errorf("%v", err)
			return
		}
		s.c.Logger.Errorf("fatal: %v", err)
		s.fail(err)
		return
	}

	payload := refreshPayload{ChangeType: sub.Refresh}
	if sub.Refresh == RefreshCSS {
		payload.CSSURL = s.styleSheetURL()
		s.c.Logger.Infof("hot reloading stylesheet")
	} else {
		s.c.Logger.Infof("reloading browser")
	}
	s.manager.send(payload)
}

// styleSheetURL is the stylesheet's URL with a query that changes whenever
// its content does.
func (s *DevSession) styleSheetURL() string {
	url := "/" + transform.StyleOutput
	data, err := os.ReadFile(filepath.Join(s.dirs.Build, filepath.FromSlash(transform.StyleOutput)))
	if err != nil {
		return url
	}
	return url + "?v=" + contentHash(data)
}

// contentHash is a short hex digest used to bust caches.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:12]
}
