package ik

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// matchKey is a glob and the source-relative path tested against it.
type matchKey struct {
	pattern string
	rel     string
}

// matches reports whether rel falls under pattern. Results live as long as
// the session.
func (s *DevSession) matches(pattern, rel string) bool {
	key := matchKey{pattern: pattern, rel: rel}
	if hit, ok := s.matchCache.Load(key); ok {
		return hit
	}
	hit, err := doublestar.Match(pattern, rel)
	if err != nil {
		s.c.Logger.Errorf("error: match %s against %q: %v", rel, pattern, err)
		return false
	}
	actual, _ := s.matchCache.LoadOrStore(key, hit)
	return actual
}

// triggers reports whether op on rel reruns sub.
func (s *DevSession) triggers(sub Subscription, rel string, op fsnotify.Op) bool {
	return sub.accepts(op) && s.matches(sub.Pattern, rel)
}

// skipDir reports whether the directory at rel, and everything below it,
// is left unwatched.
func (s *DevSession) skipDir(rel string) bool {
	for _, pattern := range s.ignoredDirPatterns {
		if s.matches(pattern, rel) {
			return true
		}
	}
	return false
}

func validatePatterns(subs []Subscription, ignoreDirs []string) error {
	for _, sub := range subs {
		if !doublestar.ValidatePattern(sub.Pattern) {
			return fmt.Errorf("invalid subscription pattern %q", sub.Pattern)
		}
	}
	for _, pattern := range ignoreDirs {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return nil
}
