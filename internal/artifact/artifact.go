// Package artifact persists pipeline outputs as versioned JSON files. Writes
// are atomic (temp file then rename) so a reader never observes a torn
// artifact, even mid-run.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quarrylabs/quarry/internal/model"
)

// Version is the artifact envelope schema version. Readers reject envelopes
// with a version they do not understand.
const Version = "1"

// Artifact file names within the store directory.
const (
	FileTreeName        = "file_tree.json"
	DependencyGraphName = "dependency_graph.json"
	CallGraphName       = "call_graph.json"
)

// Names lists every artifact the pipeline produces, in write order.
var Names = []string{FileTreeName, DependencyGraphName, CallGraphName}

// Envelope wraps every artifact payload.
type Envelope struct {
	Version     string          `json:"version"`
	GeneratedAt time.Time       `json:"generatedAt"`
	Payload     json.RawMessage `json:"payload"`
}

// FileTree is the payload of file_tree.json.
type FileTree struct {
	TotalFiles int                          `json:"totalFiles"`
	Files      map[string]*model.FileRecord `json:"files"`
}

// CallGraph is the payload of call_graph.json.
type CallGraph struct {
	Nodes []model.CallGraphNode `json:"nodes"`
}

// Store reads and writes artifacts under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the on-disk path of a named artifact.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Write marshals payload into a versioned envelope and atomically replaces
// the named artifact.
func (s *Store) Write(name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	env := Envelope{
		Version:     Version,
		GeneratedAt: time.Now().UTC(),
		Payload:     raw,
	}
	data, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Read loads and validates the named artifact's envelope. The payload is left
// raw for the caller to decode.
func (s *Store) Read(name string) (*Envelope, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%s: unsupported artifact version %q", name, env.Version)
	}
	return &env, nil
}

// ReadPayload reads the named artifact and decodes its payload into out.
func (s *Store) ReadPayload(name string, out any) (*Envelope, error) {
	env, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", name, err)
	}
	return env, nil
}

// Stat returns the modification time of the named artifact, or ok=false when
// it does not exist.
func (s *Store) Stat(name string) (time.Time, bool) {
	fi, err := os.Stat(s.Path(name))
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}
