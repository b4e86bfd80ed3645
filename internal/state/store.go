package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
)

// ErrCorruptState is returned (wrapped) when the state file exists but cannot
// be decoded.
var ErrCorruptState = errors.New("corrupt state file")

// stateFile is the on-disk layout. The legacy fields are read from state
// files written by older releases and never written back.
type stateFile struct {
	BlackoutUntil *time.Time `json:"blackout_until,omitempty"`
	NextBreakDue  *time.Time `json:"next_break_due,omitempty"`
	BreakUntil    *time.Time `json:"break_until,omitempty"`
	WrittenAt     *time.Time `json:"written_at,omitempty"`

	BlockedUntil       *time.Time `json:"blocked_until,omitempty"`
	NextBathroomBreak  *time.Time `json:"next_bathroom_break,omitempty"`
	InBathroomBreak    *bool      `json:"in_bathroom_break,omitempty"`
	BathroomBreakUntil *time.Time `json:"bathroom_break_until,omitempty"`
}

func (f *stateFile) isLegacy() bool {
	return f.NextBreakDue == nil &&
		(f.NextBathroomBreak != nil || f.BlockedUntil != nil ||
			f.InBathroomBreak != nil || f.BathroomBreakUntil != nil)
}

// LoadStatus describes how a loaded Timing relates to the file on disk.
type LoadStatus int

const (
	// NotFound means there is no state file; defaults were returned.
	NotFound LoadStatus = iota
	// UpToDate means the file holds exactly the returned Timing.
	UpToDate
	// NeedsRewrite means the returned Timing was migrated from the legacy
	// format or completed with a fresh next_break_due. It must be saved, or
	// every restart would pick a new break deadline.
	NeedsRewrite
)

func (s LoadStatus) String() string {
	switch s {
	case NotFound:
		return "not_found"
	case UpToDate:
		return "up_to_date"
	case NeedsRewrite:
		return "needs_rewrite"
	default:
		return "unknown"
	}
}

// Store persists Timing as JSON at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. An absent file yields Defaults(now,
// breakInterval) and NotFound. The result is NOT reconciled.
func (s *Store) Load(now time.Time, breakInterval time.Duration) (Timing, LoadStatus, error) {
	log := logger.WithComponent("state")

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", s.path).Msg("State file not found, starting with defaults")
			return Defaults(now, breakInterval), NotFound, nil
		}
		return Timing{}, NotFound, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Timing{}, NotFound, fmt.Errorf("%w %s: %v", ErrCorruptState, s.path, err)
	}

	if f.isLegacy() {
		log.Info().Str("path", s.path).Msg("Detected legacy state format, migrating")
		return migrateLegacy(&f, now, breakInterval), NeedsRewrite, nil
	}

	t := Timing{
		BlackoutUntil: f.BlackoutUntil,
		BreakUntil:    f.BreakUntil,
	}
	if f.NextBreakDue == nil {
		log.Warn().Str("path", s.path).Msg("State file has no next_break_due, scheduling from now")
		t.NextBreakDue = now.Add(breakInterval)
		return t, NeedsRewrite, nil
	}
	t.NextBreakDue = *f.NextBreakDue
	return t, UpToDate, nil
}

func migrateLegacy(f *stateFile, now time.Time, breakInterval time.Duration) Timing {
	t := Timing{BlackoutUntil: f.BlockedUntil}
	if f.NextBathroomBreak != nil {
		t.NextBreakDue = *f.NextBathroomBreak
	} else {
		t.NextBreakDue = now.Add(breakInterval)
	}
	// Older releases could leave a stale break deadline behind the flag
	if f.InBathroomBreak != nil && *f.InBathroomBreak {
		t.BreakUntil = f.BathroomBreakUntil
	}
	return t
}

// Save writes the state atomically: temp file in the same directory, fsync,
// rename.
func (s *Store) Save(t Timing, now time.Time) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	f := stateFile{
		BlackoutUntil: t.BlackoutUntil,
		NextBreakDue:  At(t.NextBreakDue),
		BreakUntil:    t.BreakUntil,
		WrittenAt:     At(now),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".browserguard-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	logger.WithComponent("state").Debug().Str("path", s.path).Msg("State saved")
	return nil
}
