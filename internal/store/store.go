// Package store implements the Scenario Store (C4): content-addressed
// persistence of ScenarioDefinitions and write-once RunArtifacts, using
// a file-per-entity JSON layout with a rename-on-write pattern and a
// flock-guarded storage root (§4.4, §6).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// ErrNotFound is returned when a lookup finds no matching scenario.
var ErrNotFound = errors.New("scenario not found")

// ErrAmbiguous is returned when a reference matches more than one
// scenario and no exact scenario_id match disambiguates it.
var ErrAmbiguous = errors.New("ambiguous scenario reference")

// ErrNoHistory is returned by ResolveLast when no scenario has ever
// been saved.
var ErrNoHistory = errors.New("no scenario history")

// ErrDuplicate is returned by SaveRunArtifact when a run_id has
// already been persisted (§4.4: "write-once; fails Duplicate on
// re-submit").
var ErrDuplicate = errors.New("run artifact already exists")

// Store is the filesystem-backed Scenario Store. Safe for concurrent
// use within one process; a flock on the storage root additionally
// serializes writers across processes (§5's single-writer rule,
// enforced at the process-group level).
type Store struct {
	root string
	lock *flock.Flock
	mu   sync.Mutex
}

// New opens (creating if necessary) a Store rooted at root, per the
// persistence layout in §6: <root>/scenarios/<id>.json,
// <root>/runs/<id>.json.
func New(root string) (*Store, error) {
	for _, sub := range []string{"scenarios", "runs"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", sub, err)
		}
	}
	return &Store{
		root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

func (s *Store) scenarioPath(id string) string {
	return filepath.Join(s.root, "scenarios", id+".json")
}

func (s *Store) runPath(id string) string {
	return filepath.Join(s.root, "runs", id+".json")
}

// writeAtomic writes data to path via a temp file + rename, so a
// reader never observes a partially written document (§5).
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) withLock(fn func() error) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquiring storage lock: %w", err)
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// SaveScenario upserts a ScenarioDefinition by scenario_id. Updating
// an existing scenario preserves created_at and refreshes last_run_at.
func (s *Store) SaveScenario(def domain.ScenarioDefinition) error {
	return s.withLock(func() error {
		if existing, err := s.loadScenarioUnlocked(def.ScenarioID); err == nil {
			def.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		data, err := json.MarshalIndent(def, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling scenario: %w", err)
		}
		return writeAtomic(s.scenarioPath(def.ScenarioID), data)
	})
}

func (s *Store) loadScenarioUnlocked(id string) (domain.ScenarioDefinition, error) {
	data, err := os.ReadFile(s.scenarioPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ScenarioDefinition{}, ErrNotFound
		}
		return domain.ScenarioDefinition{}, fmt.Errorf("reading scenario %s: %w", id, err)
	}
	var def domain.ScenarioDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.ScenarioDefinition{}, fmt.Errorf("parsing scenario %s: %w", id, err)
	}
	return def, nil
}

// LoadScenario loads a ScenarioDefinition by exact scenario_id.
func (s *Store) LoadScenario(id string) (domain.ScenarioDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadScenarioUnlocked(id)
}

// ListAllScenarios returns the summary projection of every persisted
// scenario.
func (s *Store) ListAllScenarios() ([]domain.ScenarioSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.root, "scenarios"))
	if err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}
	var out []domain.ScenarioSummary
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		def, err := s.loadScenarioUnlocked(id)
		if err != nil {
			continue
		}
		out = append(out, domain.ScenarioSummary{
			ScenarioID:   def.ScenarioID,
			ScenarioName: def.ScenarioName,
			TargetURL:    def.TargetURL,
			Tags:         def.Tags,
			LastRunAt:    def.LastRunAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScenarioName < out[j].ScenarioName })
	return out, nil
}

// FindScenario resolves a free-form reference per §4.4's order:
// (a) exact scenario_id, (b) case-insensitive substring on
// scenario_name, (c) case-insensitive substring on target_url host.
func (s *Store) FindScenario(reference string) (domain.ScenarioDefinition, error) {
	if def, err := s.LoadScenario(reference); err == nil {
		return def, nil
	} else if !errors.Is(err, ErrNotFound) {
		return domain.ScenarioDefinition{}, err
	}

	summaries, err := s.ListAllScenarios()
	if err != nil {
		return domain.ScenarioDefinition{}, err
	}

	ref := strings.ToLower(reference)
	var nameMatches, hostMatches []domain.ScenarioSummary
	for _, sum := range summaries {
		if strings.Contains(strings.ToLower(sum.ScenarioName), ref) {
			nameMatches = append(nameMatches, sum)
		}
		host := strings.ToLower(sum.TargetURL)
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		if i := strings.IndexAny(host, "/:"); i >= 0 {
			host = host[:i]
		}
		if strings.Contains(host, ref) {
			hostMatches = append(hostMatches, sum)
		}
	}

	matches := nameMatches
	if len(matches) == 0 {
		matches = hostMatches
	}
	if len(matches) == 0 {
		return domain.ScenarioDefinition{}, ErrNotFound
	}
	if len(matches) > 1 {
		return domain.ScenarioDefinition{}, ErrAmbiguous
	}
	return s.LoadScenario(matches[0].ScenarioID)
}

// ResolveLast returns the scenario with the greatest last_run_at (or
// created_at when last_run_at is zero), per §4.4.
func (s *Store) ResolveLast() (domain.ScenarioDefinition, error) {
	summaries, err := s.ListAllScenarios()
	if err != nil {
		return domain.ScenarioDefinition{}, err
	}
	if len(summaries) == 0 {
		return domain.ScenarioDefinition{}, ErrNoHistory
	}

	best := summaries[0]
	bestTime := s.lastActivity(best)
	for _, sum := range summaries[1:] {
		if t := s.lastActivity(sum); t.After(bestTime) {
			best = sum
			bestTime = t
		}
	}
	return s.LoadScenario(best.ScenarioID)
}

func (s *Store) lastActivity(sum domain.ScenarioSummary) time.Time {
	if sum.LastRunAt.IsZero() {
		if def, err := s.LoadScenario(sum.ScenarioID); err == nil {
			return def.CreatedAt
		}
	}
	return sum.LastRunAt
}

// SaveRunArtifact persists a RunArtifact write-once; a second save
// under the same run_id fails with ErrDuplicate (§4.4, §3 invariant:
// "append-only after emission").
func (s *Store) SaveRunArtifact(artifact domain.RunArtifact) error {
	return s.withLock(func() error {
		path := s.runPath(artifact.RunID)
		if _, err := os.Stat(path); err == nil {
			return ErrDuplicate
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking run artifact %s: %w", artifact.RunID, err)
		}
		data, err := json.MarshalIndent(artifact, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling run artifact: %w", err)
		}
		return writeAtomic(path, data)
	})
}

// LoadRunArtifact loads a persisted RunArtifact by run_id.
func (s *Store) LoadRunArtifact(runID string) (domain.RunArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.RunArtifact{}, ErrNotFound
		}
		return domain.RunArtifact{}, fmt.Errorf("reading run artifact %s: %w", runID, err)
	}
	var artifact domain.RunArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return domain.RunArtifact{}, fmt.Errorf("parsing run artifact %s: %w", runID, err)
	}
	return artifact, nil
}
