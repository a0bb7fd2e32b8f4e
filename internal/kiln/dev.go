package ik

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sjc5/kiln/internal/fileset"
	"github.com/sjc5/kit/pkg/typed"
)

type State int32

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	}
	return "unknown"
}

const shutdownTimeout = 2 * time.Second

// DevSession serves the build tree, watches the source tree and pushes
// refreshes to connected browsers. A session can be started again after it
// has stopped.
type DevSession struct {
	c *Config

	mu    sync.Mutex
	state State
	addr  string

	// closing is set while a Stop is shutting the session down; stopped is
	// closed once it has finished.
	closing bool
	stopped chan struct{}

	dirs               cleanDirs
	ignoredDirPatterns []string
	listener           net.Listener
	server             *http.Server
	watcher            *fsnotify.Watcher
	manager            *clientManager
	done               chan struct{}
	errs               chan error
	wg                 sync.WaitGroup
	matchCache         typed.SyncMap[matchKey, bool]

	// procMu serializes batches and lets Stop wait for the one in flight.
	procMu sync.Mutex
}

func (c *Config) NewDevSession() *DevSession {
	return &DevSession{c: c, errs: make(chan error, 1)}
}

func (s *DevSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr is the address the server listens on, or "" when not running.
func (s *DevSession) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Err delivers the first fatal error raised while running. The session
// keeps running; the caller decides whether to stop it. Each start gets a
// fresh channel.
func (s *DevSession) Err() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

// Start binds the server address, watches the source tree and begins
// serving. It does not build anything. The session stops when ctx is done.
func (s *DevSession) Start(ctx context.Context) error {
	if err := s.c.Normalize(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return fmt.Errorf("dev session is %s", s.state)
	}
	s.state = Starting
	s.mu.Unlock()

	if err := s.start(); err != nil {
		s.mu.Lock()
		s.state = Stopped
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = Running
	s.mu.Unlock()

	go func(done chan struct{}) {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-done:
		}
	}(s.done)

	return nil
}

func (s *DevSession) start() error {
	s.dirs = s.c.getCleanDirs()
	s.ignoredDirPatterns = append(append([]string(nil), naiveIgnoreDirPatterns...), s.c.IgnoreDirs...)

	addr := net.JoinHostPort(s.c.Host, strconv.Itoa(s.c.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrBind, addr, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		ln.Close()
		return fmt.Errorf("%w: create watcher: %w", fileset.ErrIO, err)
	}
	s.watcher = watcher

	if err := s.addDirs(s.dirs.Source); err != nil {
		watcher.Close()
		ln.Close()
		return fmt.Errorf("error: failed to add directories to watcher: %w", err)
	}

	s.listener = ln
	s.manager = newClientManager()
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:           withCORS(s.newMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.errs = make(chan error, 1)
	s.stopped = make(chan struct{})
	s.mu.Unlock()

	go s.manager.start()

	s.wg.Add(2)
	go s.handleWatcherEmissions()
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.c.Logger.Errorf("error: dev server stopped: %v", err)
			s.fail(err)
		}
	}()

	s.c.Logger.Infof("serving %s at http://%s", filepath.Base(s.dirs.Build), s.addr)
	return nil
}

// Stop shuts the session down and waits for its goroutines. Stopping a
// stopped session does nothing. A Stop that overlaps another returns once
// the first has finished.
func (s *DevSession) Stop() error {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil
	}
	if s.closing {
		stopped := s.stopped
		s.mu.Unlock()
		<-stopped
		return nil
	}
	s.closing = true
	close(s.done)
	s.mu.Unlock()

	s.manager.stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := s.server.Shutdown(ctx)
	if shutdownErr != nil {
		s.server.Close()
	}
	watchErr := s.watcher.Close()

	s.wg.Wait()
	// let an in-flight rebuild finish
	s.procMu.Lock()
	s.procMu.Unlock()

	s.mu.Lock()
	s.state = Stopped
	s.addr = ""
	s.closing = false
	close(s.stopped)
	s.mu.Unlock()

	return errors.Join(shutdownErr, watchErr)
}

func (s *DevSession) stopping() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *DevSession) fail(err error) {
	s.mu.Lock()
	errs := s.errs
	s.mu.Unlock()
	select {
	case errs <- err:
	default:
	}
}

// Dev compiles styles, then serves and watches until ctx is done or the
// session hits a fatal error.
func (c *Config) Dev(ctx context.Context) error {
	if err := c.CompileStyles(); err != nil {
		return err
	}

	s := c.NewDevSession()
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-s.Err():
		return err
	}
}
