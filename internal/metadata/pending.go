package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"sort"
	"time"
)

// PendingFileName is the write-ahead marker file kept inside the trash can root
const PendingFileName = ".trash_pending.json"

// Op names a trash can operation recorded in the pending marker
type Op string

const (
	OpMove    Op = "move"
	OpRestore Op = "restore"
	OpRemove  Op = "remove"
)

// State is the lifecycle state of a pending operation
type State string

const (
	// StatePrepared means the operation started and has not finished
	StatePrepared State = "prepared"

	// StateCommitted means the operation finished. Committed markers are
	// dropped from the file.
	StateCommitted State = "committed"

	// StateFailed means the operation stopped half way and the can may need
	// manual attention
	StateFailed State = "failed"
)

var (
	// ErrInvalidStateTransition is returned when an invalid state transition is attempted
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrNoPending is returned when no marker matches an operation
	ErrNoPending = errors.New("no pending operation")
)

func (s State) canTransitionTo(target State) bool {
	switch s {
	case StatePrepared:
		return target == StateCommitted || target == StateFailed
	default:
		return false
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch State(str) {
	case StatePrepared, StateCommitted, StateFailed:
		*s = State(str)
		return nil
	default:
		return fmt.Errorf("invalid pending state: %s", str)
	}
}

// Pending describes an operation that mutates the can together with the
// store. A marker outliving its process means the two may disagree.
type Pending struct {
	Op         Op        `json:"op"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	State      State     `json:"state"`
	StartTime  time.Time `json:"start_time"`
	UpdateTime time.Time `json:"update_time"`
	Error      string    `json:"error,omitempty"`
}

func (p Pending) key() string {
	return string(p.Op) + ":" + p.Name
}

// Transition moves the marker to target
func (p *Pending) Transition(target State) error {
	if !p.State.canTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			ErrInvalidStateTransition, p.State, target)
	}
	p.State = target
	p.UpdateTime = time.Now()
	return nil
}

// Begin records that op on name is about to start
func (s *Store) Begin(op Op, name, path string) error {
	now := time.Now()
	p := Pending{
		Op:         op,
		Name:       name,
		Path:       path,
		State:      StatePrepared,
		StartTime:  now,
		UpdateTime: now,
	}
	return s.updatePending(func(m map[string]Pending) error {
		m[p.key()] = p
		return nil
	})
}

// Commit drops the marker of a finished operation
func (s *Store) Commit(op Op, name string) error {
	return s.updatePending(func(m map[string]Pending) error {
		key := Pending{Op: op, Name: name}.key()
		p, ok := m[key]
		if !ok {
			return fmt.Errorf("%s %s: %w", op, name, ErrNoPending)
		}
		if err := p.Transition(StateCommitted); err != nil {
			return err
		}
		delete(m, key)
		return nil
	})
}

// Fail keeps the marker of an interrupted operation along with its cause
func (s *Store) Fail(op Op, name string, cause error) error {
	return s.updatePending(func(m map[string]Pending) error {
		key := Pending{Op: op, Name: name}.key()
		p, ok := m[key]
		if !ok {
			return fmt.Errorf("%s %s: %w", op, name, ErrNoPending)
		}
		if err := p.Transition(StateFailed); err != nil {
			return err
		}
		if cause != nil {
			p.Error = cause.Error()
		}
		m[key] = p
		return nil
	})
}

// Pending returns the markers left behind, oldest first
func (s *Store) Pending() ([]Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadPending()
	if err != nil {
		return nil, err
	}
	list := make([]Pending, 0, len(m))
	for _, p := range m {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartTime.Before(list[j].StartTime)
	})
	return list, nil
}

func (s *Store) loadPending() (map[string]Pending, error) {
	m := make(map[string]Pending)
	if err := readJSON(s.pendingPath, &m); err != nil {
		return nil, fmt.Errorf("read %s: %w", s.pendingPath, err)
	}
	return m, nil
}

func (s *Store) updatePending(fn func(map[string]Pending) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadPending()
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		return err
	}
	if len(m) == 0 {
		if err := os.Remove(s.pendingPath); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.pendingPath, err)
		}
		return nil
	}
	if err := writeJSON(s.pendingPath, m); err != nil {
		return fmt.Errorf("write %s: %w", s.pendingPath, err)
	}
	return nil
}
