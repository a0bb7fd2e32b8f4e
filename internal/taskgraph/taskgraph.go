// Package taskgraph runs a fixed set of named tasks with declared
// dependencies. A task starts as soon as every dependency has succeeded;
// tasks whose dependencies failed are skipped. Tasks with no path between
// them run concurrently and are not ordered relative to each other.
package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownTask = errors.New("unknown task")
	ErrCycle       = errors.New("dependency cycle")
	ErrSkipped     = errors.New("skipped: dependency failed")
)

type Task struct {
	Name string
	Deps []string
	Run  func(ctx context.Context) error
}

type Graph struct {
	tasks map[string]*Task
	order []string
}

func New(tasks ...Task) (*Graph, error) {
	g := &Graph{tasks: make(map[string]*Task, len(tasks))}
	for i := range tasks {
		t := tasks[i]
		if t.Name == "" {
			return nil, errors.New("task with empty name")
		}
		if _, dup := g.tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		g.tasks[t.Name] = &t
		g.order = append(g.order, t.Name)
	}
	for _, name := range g.order {
		for _, dep := range g.tasks[name].Deps {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("%w %q (dependency of %q)", ErrUnknownTask, dep, name)
			}
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}
	return g, nil
}

// Names returns task names in registration order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Closure returns the named targets plus everything they depend on,
// sorted so that every task comes after its dependencies.
func (g *Graph) Closure(targets ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	var visit func(string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		t, ok := g.tasks[name]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownTask, name)
		}
		seen[name] = true
		for _, dep := range t.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		out = append(out, name)
		return nil
	}
	for _, target := range targets {
		if err := visit(target); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TaskError is the failure of a single task.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %s: %v", e.Task, e.Err) }
func (e *TaskError) Unwrap() error { return e.Err }

// Run executes the targets and their dependencies. It waits for every
// started task to finish and returns every failure as a *TaskError, joined
// in dependency order. A cancelled ctx prevents tasks that have not yet
// started from running.
func (g *Graph) Run(ctx context.Context, targets ...string) error {
	names, err := g.Closure(targets...)
	if err != nil {
		return err
	}

	type result struct {
		done chan struct{}
		err  error
	}
	results := make(map[string]*result, len(names))
	for _, name := range names {
		results[name] = &result{done: make(chan struct{})}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, name := range names {
		wg.Add(1)
		go func(t *Task, res *result) {
			defer wg.Done()
			defer close(res.done)

			for _, dep := range t.Deps {
				d := results[dep]
				<-d.done
				if d.err != nil {
					res.err = ErrSkipped
					return
				}
			}

			if err := ctx.Err(); err != nil {
				res.err = err
			} else if t.Run != nil {
				res.err = t.Run(ctx)
			}
			if res.err != nil {
				mu.Lock()
				errs = append(errs, &TaskError{Task: t.Name, Err: res.err})
				mu.Unlock()
			}
		}(g.tasks[name], results[name])
	}

	wg.Wait()

	sort.SliceStable(errs, func(i, j int) bool {
		return indexOf(names, errs[i].(*TaskError).Task) < indexOf(names, errs[j].(*TaskError).Task)
	})
	return errors.Join(errs...)
}

func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(g.tasks))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(name string) bool {
		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range g.tasks[name].Deps {
			switch state[dep] {
			case visiting:
				start := indexOf(stack, dep)
				cycle = append(append([]string(nil), stack[start:]...), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = visited
		return false
	}

	for _, name := range g.order {
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
