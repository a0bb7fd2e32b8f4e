package ik

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/sjc5/kiln/internal/fileset"
	"github.com/sjc5/kiln/internal/taskgraph"
	"github.com/sjc5/kiln/internal/transform"
)

// concurrentStages run together once styles has succeeded. They write
// disjoint parts of the build tree.
var concurrentStages = []string{StageCopy, StageSprite, StageMinifyJS, StageMinifyHTML}

// Clean removes the build tree. Removing a missing tree is not an error.
func (c *Config) Clean() error {
	if err := c.Normalize(); err != nil {
		return err
	}
	return c.clean()
}

func (c *Config) clean() error {
	buildDir := c.getCleanDirs().Build
	if err := os.RemoveAll(buildDir); err != nil {
		return &StageError{Stage: StageClean, Err: fmt.Errorf("%w: remove %s: %w", fileset.ErrIO, buildDir, err)}
	}
	return nil
}

func (c *Config) CompileStyles() error { return c.RunStage(StageStyles) }
func (c *Config) MinifyMarkup() error  { return c.RunStage(StageMinifyHTML) }
func (c *Config) MinifyScript() error  { return c.RunStage(StageMinifyJS) }
func (c *Config) CopyAssets() error    { return c.RunStage(StageCopy) }
func (c *Config) BuildSprite() error   { return c.RunStage(StageSprite) }

// RunStage runs one named stage on its own, without cleaning first.
func (c *Config) RunStage(name string) error {
	if err := c.Normalize(); err != nil {
		return err
	}
	switch name {
	case StageClean:
		return c.clean()
	case StageBuild:
		return c.BuildContext(context.Background())
	}
	st, ok := c.stages()[name]
	if !ok {
		return fmt.Errorf("unknown stage %q", name)
	}
	return c.runStage(st)
}

// Build runs clean, then styles, then the remaining stages concurrently.
// A failed clean or styles stops the build. Failures among the concurrent
// stages do not stop their siblings and are returned joined.
func (c *Config) Build() error {
	return c.BuildContext(context.Background())
}

// BuildContext is Build with a context. Cancelling ctx keeps stages that
// have not started from running; running stages finish.
func (c *Config) BuildContext(ctx context.Context) error {
	if err := c.Normalize(); err != nil {
		return err
	}
	start := time.Now()
	g, err := c.buildGraph()
	if err != nil {
		return err
	}
	if err := stageErrors(g.Run(ctx, StageBuild)); err != nil {
		return err
	}
	c.Logger.Infof("build finished after %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Config) buildGraph() (*taskgraph.Graph, error) {
	stages := c.stages()
	run := func(name string) func(context.Context) error {
		st := stages[name]
		return func(context.Context) error { return c.runStage(st) }
	}

	tasks := []taskgraph.Task{
		{Name: StageClean, Run: func(context.Context) error { return c.clean() }},
		{Name: StageStyles, Deps: []string{StageClean}, Run: run(StageStyles)},
	}
	for _, name := range concurrentStages {
		tasks = append(tasks, taskgraph.Task{Name: name, Deps: []string{StageStyles}, Run: run(name)})
	}
	tasks = append(tasks, taskgraph.Task{Name: StageBuild, Deps: concurrentStages})
	return taskgraph.New(tasks...)
}

func (c *Config) runStage(st stage) error {
	start := time.Now()
	dirs := c.getCleanDirs()

	in, err := st.read(dirs.Source)
	if err != nil {
		return &StageError{Stage: st.name, Err: err}
	}
	if len(in) == 0 {
		c.Logger.Infof("warning: %s: nothing matches %s in %s", st.name, strings.Join(st.patterns, ", "), dirs.Source)
		return nil
	}

	out, err := st.transform(in)
	if err != nil {
		return &StageError{Stage: st.name, Err: err}
	}
	if len(out) == 0 {
		c.Logger.Infof("warning: %s: no output from %d input files", st.name, len(in))
		return nil
	}

	if err := out.WriteTo(dirs.Build, c.fileSemaphore); err != nil {
		return &StageError{Stage: st.name, Err: err}
	}

	c.Logger.Infof("finished %s after %s", st.name, time.Since(start).Round(time.Millisecond))
	return nil
}

// styleSourceRoot is the source tree as seen from the stylesheet's output
// directory, so that source map paths resolve in the browser.
func (c *Config) styleSourceRoot() string {
	dirs := c.getCleanDirs()
	cssDir := filepath.Join(dirs.Build, filepath.FromSlash(path.Dir(transform.StyleOutput)))
	rel, err := filepath.Rel(cssDir, dirs.Source)
	if err != nil {
		return ""
	}
	return filepath.ToSlash(rel)
}
