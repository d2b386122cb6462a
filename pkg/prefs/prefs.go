// Package prefs provides a small namespaced key/value store that survives
// power loss. Each namespace lives in its own YAML file and every write
// replaces that file atomically.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFilePermissions is the mode used for namespace files.
const DefaultFilePermissions = 0o600

var (
	// ErrNotFound is returned when a key has never been written.
	ErrNotFound = errors.New("key not found")

	errBadNamespace = errors.New("invalid namespace name")

	namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,15}$`)
)

// Store is a directory of namespace files.
type Store struct {
	dir string

	mu  sync.Mutex
	nss map[string]*Namespace
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	return &Store{dir: dir, nss: make(map[string]*Namespace)}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Namespace returns the handle for name. Names follow the NVS limit of 15 characters.
func (s *Store) Namespace(name string) (*Namespace, error) {
	if !namespacePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", errBadNamespace, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.nss[name]; ok {
		return ns, nil
	}
	ns := &Namespace{
		name: name,
		path: filepath.Join(s.dir, name+".yaml"),
	}
	s.nss[name] = ns
	return ns, nil
}

// Namespace is one group of string keys backed by a single file.
type Namespace struct {
	name string
	path string

	mu sync.Mutex
}

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// String returns the value stored under key, or ErrNotFound.
func (n *Namespace) String(key string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	values, err := n.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// PutString stores value under key. It returns once the data is on disk.
func (n *Namespace) PutString(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	values, err := n.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking every future write.
		values = make(map[string]string)
	}
	values[key] = value
	return n.write(values)
}

func (n *Namespace) read() (map[string]string, error) {
	data, err := os.ReadFile(n.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read namespace %s: %w", n.name, err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode namespace %s: %w", n.name, err)
	}
	return values, nil
}

func (n *Namespace) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode namespace %s: %w", n.name, err)
	}
	if err := writeFileSync(n.path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write namespace %s: %w", n.name, err)
	}
	return nil
}
