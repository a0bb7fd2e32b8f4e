package ik

import (
	"github.com/fsnotify/fsnotify"
)

type RefreshKind string

const (
	// RefreshCSS swaps the stylesheet without reloading the page.
	RefreshCSS RefreshKind = "css"

	// RefreshPage reloads the page.
	RefreshPage RefreshKind = "reload"
)

// Subscription reruns stages when a watched source file changes, then
// tells connected browsers to refresh.
type Subscription struct {
	// Pattern is a doublestar glob relative to the source tree.
	Pattern string

	// Ops limits which fsnotify operations trigger the subscription. Zero
	// means any operation except a bare chmod.
	Ops fsnotify.Op

	Stages  []string
	Refresh RefreshKind
}

// DefaultSubscriptions rebuild styles on any LESS change and markup when
// a page is written or created. Editors that save by renaming a temporary
// file over the page produce a create. Scripts, images and icons are not
// watched.
var DefaultSubscriptions = []Subscription{
	{Pattern: styleWatchGlob, Stages: []string{StageStyles}, Refresh: RefreshCSS},
	{Pattern: markupGlob, Ops: fsnotify.Write | fsnotify.Create, Stages: []string{StageMinifyHTML}, Refresh: RefreshPage},
}

func (c *Config) subscriptions() []Subscription {
	if c.Subscriptions != nil {
		return c.Subscriptions
	}
	return DefaultSubscriptions
}

func (sub Subscription) accepts(op fsnotify.Op) bool {
	if sub.Ops == 0 {
		return op&^fsnotify.Chmod != 0
	}
	return op&sub.Ops != 0
}
