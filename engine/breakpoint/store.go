package breakpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/flowgate/flowgate/engine/artifact"
	"github.com/flowgate/flowgate/engine/core"
)

var ErrRunNotFound = errors.New("run snapshot not found")

// Snapshot is the durable record of a suspended run: everything needed to
// resume from exactly the phase the breakpoint interrupted, across process
// restarts.
type Snapshot struct {
	RunID      core.ID                `json:"run_id"`
	WorkflowID string                 `json:"workflow_id"`
	Status     core.StatusType        `json:"status"`
	StartedAt  time.Time              `json:"started_at"`
	PhaseIndex int                    `json:"phase_index"`
	Artifacts  []artifact.Artifact    `json:"artifacts,omitempty"`
	Outputs    map[string]core.Output `json:"outputs,omitempty"`
	Breakpoint *Breakpoint            `json:"breakpoint,omitempty"`
	Decision   *Decision              `json:"decision,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Store persists snapshots as one JSON file per run. The filesystem is
// abstracted so tests run in memory while production writes under the
// configured store dir.
type Store struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
}

type StoreOption func(*Store)

func WithStoreFs(fs afero.Fs) StoreOption {
	return func(s *Store) { s.fs = fs }
}

func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{fs: afero.NewOsFs(), dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store dir: %w", err)
	}
	snap.UpdatedAt = time.Now()
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	// Write-then-rename so a crash mid-write never corrupts the snapshot.
	tmp := s.path(snap.RunID) + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path(snap.RunID)); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *Store) Load(runID core.ID) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := afero.ReadFile(s.fs, s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", runID, err)
	}
	return snap, nil
}

// Resolve records the decision on a suspended snapshot. The run itself
// transitions back to running only when a runner picks the decision up.
func (s *Store) Resolve(runID core.ID, decision *Decision) (*Snapshot, error) {
	if err := decision.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if snap.Status != core.StatusSuspended {
		return nil, fmt.Errorf("run %s is %s, not suspended", runID, snap.Status)
	}
	snap.Decision = decision
	if err := s.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) Delete(runID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fs.Remove(s.path(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns every stored snapshot, newest first.
func (s *Store) List() ([]*Snapshot, error) {
	s.mu.Lock()
	entries, err := afero.ReadDir(s.fs, s.dir)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var snaps []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		runID := core.ID(entry.Name()[:len(entry.Name())-len(".json")])
		snap, err := s.Load(runID)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})
	return snaps, nil
}

func (s *Store) path(runID core.ID) string {
	return filepath.Join(s.dir, runID.String()+".json")
}
