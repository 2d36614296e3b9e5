package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// TimeLayout is the on-disk format of removal times (DD-MM-YYYY,HH:MM:SS)
const TimeLayout = "02-01-2006,15:04:05"

// Entry is the removal record of one item held in the trash can
type Entry struct {
	// Name is the base name of the removed item and its key in the store
	Name string `json:"file_name"`

	// OriginalDir is the absolute directory the item was removed from
	OriginalDir string `json:"removal_path"`

	// RemovedAt is when the item was moved into the can
	RemovedAt Time `json:"removal_time"`

	// Size is the recursive size in bytes measured at removal time
	Size Bytes `json:"size"`

	// Archived reports whether the content is stored as <name>.zip
	Archived bool `json:"archived"`
}

// GetName returns the entry key
func (e Entry) GetName() string { return e.Name }

// GetDeletedAt returns when the entry was trashed
func (e Entry) GetDeletedAt() time.Time { return e.RemovedAt.Time }

// Time is a time.Time persisted with TimeLayout in local time
type Time struct {
	time.Time
}

// NewTime truncates t to the second, the precision the store keeps
func NewTime(t time.Time) Time {
	return Time{Time: t.Truncate(time.Second)}
}

func (t Time) String() string {
	return t.Format(TimeLayout)
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(TimeLayout))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid removal time %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Bytes is a byte count. It is written as a plain number but also accepts the
// human-readable strings older stores contain ("1.5 KB", "12.0 bytes").
type Bytes int64

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = Bytes(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid size %s: %w", data, err)
	}
	parsed, err := parseHumanSize(s)
	if err != nil {
		return err
	}
	*b = Bytes(parsed)
	return nil
}

func parseHumanSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if num, ok := strings.CutSuffix(s, "bytes"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size %q: %w", s, err)
		}
		return int64(f), nil
	}
	// binary units, matching how sizes are rendered
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n, nil
}
