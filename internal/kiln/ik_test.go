package ik

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// testEnv holds our testing environment
type testEnv struct {
	root   string
	config *Config
	log    *testLogger
}

type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) Infof(format string, args ...any) {
	l.add("info: " + fmt.Sprintf(format, args...))
}

func (l *testLogger) Errorf(format string, args ...any) {
	l.add("error: " + fmt.Sprintf(format, args...))
}

func (l *testLogger) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *testLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// setupTestEnv creates a project in a fresh temporary directory
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	log := &testLogger{}
	config := &Config{
		RootDir: root,
		Host:    "127.0.0.1",
		Logger:  log,
	}
	if err := config.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	return &testEnv{root: root, config: config, log: log}
}

// createSourceFile writes a file under the source directory
func (env *testEnv) createSourceFile(t *testing.T, relativePath, content string) {
	t.Helper()
	env.createTestFile(t, filepath.Join(defaultSourceDir, relativePath), content)
}

// createTestFile creates a file with given content in the test environment
func (env *testEnv) createTestFile(t *testing.T, relativePath, content string) {
	t.Helper()

	fullPath := filepath.Join(env.root, relativePath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", fullPath, err)
	}
}

func (env *testEnv) sourcePath(relativePath string) string {
	return filepath.Join(env.root, defaultSourceDir, filepath.FromSlash(relativePath))
}

func (env *testEnv) buildPath(relativePath string) string {
	return filepath.Join(env.root, defaultBuildDir, filepath.FromSlash(relativePath))
}

func (env *testEnv) readBuildFile(t *testing.T, relativePath string) string {
	t.Helper()
	data, err := os.ReadFile(env.buildPath(relativePath))
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", relativePath, err)
	}
	return string(data)
}

const (
	testStyle  = "@brand: #1a2b3c;\n.header {\n  color: @brand;\n  .title { font-weight: bold; }\n}\n"
	testPage   = "<!DOCTYPE html>\n<html>\n  <head>\n    <title>Home</title>\n  </head>\n  <body>\n    <!-- nav -->\n    <p>Hello,   world</p>\n  </body>\n</html>\n"
	testScript = "function add(first, second) {\n  return first + second;\n}\nconsole.log(add(1, 2));\n"
	testIcon   = `<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24"><path d="M0 0h24v24H0z"/></svg>`
)

// createSite writes a source tree touching every stage
func (env *testEnv) createSite(t *testing.T) {
	t.Helper()
	env.createSourceFile(t, "less/style.less", testStyle)
	env.createSourceFile(t, "index.html", testPage)
	env.createSourceFile(t, "about.html", "<html><body><h1>About</h1></body></html>")
	env.createSourceFile(t, "js/script.js", testScript)
	env.createSourceFile(t, "img/logo.png", "\x89PNG fake")
	env.createSourceFile(t, "img/photo.jpg", "fake jpeg")
	env.createSourceFile(t, "fonts/body.woff2", "fake font")
	env.createSourceFile(t, "img/icon/close.svg", testIcon)
}

// snapshotBuild maps every file in the build tree to its content
func (env *testEnv) snapshotBuild(t *testing.T) map[string]string {
	t.Helper()
	snapshot := map[string]string{}
	buildDir := filepath.Join(env.root, defaultBuildDir)
	err := filepath.WalkDir(buildDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(buildDir, p)
		snapshot[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
	return snapshot
}
