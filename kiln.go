// Package kiln is a static-site asset pipeline with a live-reloading dev
// server. The kiln command wraps it; embed it to drive the pipeline from
// your own program.
package kiln

import (
	"context"

	"github.com/sjc5/kiln/internal/fileset"
	ik "github.com/sjc5/kiln/internal/kiln"
	"github.com/sjc5/kiln/internal/transform"
)

type Config = ik.Config
type Logger = ik.Logger
type DevSession = ik.DevSession
type Subscription = ik.Subscription
type StageError = ik.StageError

var (
	ErrIO           = fileset.ErrIO
	ErrBind         = ik.ErrBind
	ErrStyleCompile = transform.ErrStyleCompile
	ErrMarkup       = transform.ErrMarkup
	ErrScript       = transform.ErrScript
	ErrIcon         = transform.ErrIcon
)

// DefaultPort is the dev server port the kiln command listens on.
const DefaultPort = ik.DefaultPort

type Kiln struct {
	Config *ik.Config
}

// New returns a Kiln for the project in root with the default layout.
func New(root string) Kiln {
	return Kiln{Config: &ik.Config{RootDir: root, Port: DefaultPort}}
}

func (k Kiln) Clean() error         { return k.Config.Clean() }
func (k Kiln) CompileStyles() error { return k.Config.CompileStyles() }
func (k Kiln) MinifyMarkup() error  { return k.Config.MinifyMarkup() }
func (k Kiln) MinifyScript() error  { return k.Config.MinifyScript() }
func (k Kiln) CopyAssets() error    { return k.Config.CopyAssets() }
func (k Kiln) BuildSprite() error   { return k.Config.BuildSprite() }

// Build cleans the build directory and runs every stage.
func (k Kiln) Build(ctx context.Context) error {
	return k.Config.BuildContext(ctx)
}

// Dev compiles styles and serves with live reload until ctx is done.
func (k Kiln) Dev(ctx context.Context) error {
	return k.Config.Dev(ctx)
}

// NewDevSession returns a session to start and stop by hand.
func (k Kiln) NewDevSession() *ik.DevSession {
	return k.Config.NewDevSession()
}

// IsTransformError reports whether err came from a failed transform
// rather than from I/O.
func IsTransformError(err error) bool {
	return transform.IsTransformError(err)
}
