package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager allocates per-request scratch directories under one shared root.
// The root is an explicit configuration value, not process-global state; two
// managers with different roots are fully independent.
type Manager struct {
	root string
}

// NewManager binds a manager to the given root path.
func NewManager(root string) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	return &Manager{root: abs}, nil
}

// Root returns the absolute shared root directory.
func (m *Manager) Root() string { return m.root }

// Init creates the shared root if it does not exist. Safe to call more than
// once; concurrent requests only ever add disjoint subdirectories below it.
func (m *Manager) Init() error {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("workspace: create root %s: %w", m.root, err)
	}
	return nil
}

// Acquire creates a uniquely named directory for one request. The name
// combines the arrival time with a random suffix so concurrent requests can
// never collide. Callers must arrange Cleanup on every exit path, typically
// via defer immediately after a successful Acquire.
func (m *Manager) Acquire() (*Workspace, error) {
	if err := m.Init(); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("req-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	dir := filepath.Join(m.root, name)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("workspace: create %s: %w", dir, err)
	}
	return &Workspace{dir: dir}, nil
}

// Workspace is the scratch directory owned by a single request.
type Workspace struct {
	dir string
}

// Dir returns the absolute workspace directory.
func (w *Workspace) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Cleanup recursively deletes the workspace. It is safe to call on a nil
// workspace and safe to call repeatedly; a directory that is already gone is
// not an error.
func (w *Workspace) Cleanup() error {
	if w == nil || w.dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("workspace: remove %s: %w", w.dir, err)
	}
	return nil
}
