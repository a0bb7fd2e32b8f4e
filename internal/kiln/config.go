package ik

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sjc5/kit/pkg/colorlog"
	"golang.org/x/sync/semaphore"
)

// Logger is the subset of colorlog.Log the pipeline writes to.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type Config struct {
	/*
		RootDir is the project directory holding the source and build trees.
		It is cleaned with filepath.Clean, so leaving it blank means ".".
	*/
	RootDir string

	// SourceDir and BuildDir are relative to RootDir. They default to
	// "source" and "build". Neither may contain the other.
	SourceDir string
	BuildDir  string

	// Host and Port are the dev server's listen address. Port 0 lets the
	// OS pick a free port; there is no fallback when the port is taken.
	Host string
	Port int

	// Lessc, if set, is an external lessc binary used instead of the
	// built-in LESS compiler.
	Lessc string

	// StyleEngines overrides the browser matrix used for vendor prefixing.
	StyleEngines []api.Engine

	// Subscriptions overrides DefaultSubscriptions for dev sessions.
	Subscriptions []Subscription

	// IgnoreDirs are doublestar patterns, relative to SourceDir, of
	// directories the watcher skips.
	IgnoreDirs []string

	Logger Logger

	fileSemaphore *semaphore.Weighted
}

// DefaultPort is the dev server port the kiln command listens on.
const DefaultPort = 3000

const (
	defaultSourceDir = "source"
	defaultBuildDir  = "build"
	defaultHost      = "localhost"
	maxOpenFiles     = 100
)

var naiveIgnoreDirPatterns = []string{"**/.git", "**/node_modules"}

// Normalize fills in defaults. It is called by every operation, so calling
// it directly is only needed to inspect the result.
func (c *Config) Normalize() error {
	if c.SourceDir == "" {
		c.SourceDir = defaultSourceDir
	}
	if c.BuildDir == "" {
		c.BuildDir = defaultBuildDir
	}
	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Logger == nil {
		c.Logger = &colorlog.Log{}
	}
	if c.fileSemaphore == nil {
		c.fileSemaphore = semaphore.NewWeighted(maxOpenFiles)
	}

	if err := validatePatterns(c.subscriptions(), c.IgnoreDirs); err != nil {
		return err
	}

	dirs := c.getCleanDirs()
	if dirs.Source == dirs.Build {
		return errors.New("source and build directories must differ")
	}
	if isWithin(dirs.Source, dirs.Build) || isWithin(dirs.Build, dirs.Source) {
		return fmt.Errorf("source directory %s and build directory %s must not contain each other", dirs.Source, dirs.Build)
	}
	return nil
}

type cleanDirs struct {
	Root   string
	Source string
	Build  string
}

func (c *Config) getCleanDirs() cleanDirs {
	root := filepath.Clean(c.RootDir)
	return cleanDirs{
		Root:   root,
		Source: filepath.Join(root, c.SourceDir),
		Build:  filepath.Join(root, c.BuildDir),
	}
}

func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
