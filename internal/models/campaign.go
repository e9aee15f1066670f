package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignKind distinguishes instant check-ins from duration-based ones
type CampaignKind string

const (
	CampaignKindInstant  CampaignKind = "INSTANT"
	CampaignKindDuration CampaignKind = "DURATION"
)

// CampaignDescriptor is one configured campaign. Like beacon
// descriptors it is an immutable snapshot for the lifetime of a scan
// session; replacing it requires a session stop/start.
type CampaignDescriptor struct {
	ID   uuid.UUID    `json:"id" db:"id"`
	Name string       `json:"name" db:"name"`
	Kind CampaignKind `json:"kind" db:"kind"`

	RequiredDurationMinutes    int `json:"requiredDurationMinutes" db:"required_duration_minutes"`
	RequiredPresencePercentage int `json:"requiredPresencePercentage" db:"required_presence_percentage"`
	ProximityDelaySeconds      int `json:"proximityDelaySeconds" db:"proximity_delay_seconds"`

	// TimeBlocks, when non-empty, take precedence over the legacy
	// single window and make the campaign restrictive by default.
	TimeBlocks TimeBlocks `json:"timeBlocks" db:"time_blocks"`

	// Legacy single-window fields kept for records authored before
	// time blocks existed.
	LegacyEnabled bool       `json:"legacyEnabled" db:"legacy_enabled"`
	LegacyStart   *TimeOfDay `json:"legacyStart,omitempty" db:"legacy_start"`
	LegacyEnd     *TimeOfDay `json:"legacyEnd,omitempty" db:"legacy_end"`
}

// TimeBlock is a recurring weekly interval during which check-in is
// permitted. DayOfWeek follows time.Weekday numbering (0 = Sunday).
// Blocks never span midnight: Start < End.
type TimeBlock struct {
	DayOfWeek int       `json:"dayOfWeek"`
	Start     TimeOfDay `json:"startTime"`
	End       TimeOfDay `json:"endTime"`

	// PresenceOverride, when set, replaces the campaign's required
	// presence percentage while this block is active.
	PresenceOverride *int `json:"presencePercentageOverride,omitempty"`
}

// TimeBlocks is stored as a JSONB column
type TimeBlocks []TimeBlock

// Value implements driver.Valuer
func (t TimeBlocks) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner
func (t *TimeBlocks) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, t)
	case string:
		return json.Unmarshal([]byte(data), t)
	default:
		return fmt.Errorf("unsupported time blocks type %T", value)
	}
}

// TimeOfDay is a local time of day in seconds since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from clock components.
func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay(hour*3600 + min*60 + sec)
}

// TimeOfDayFrom extracts the local time of day from t.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute(), t.Second())
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int

	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		sec = 0
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	}

	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}

	return NewTimeOfDay(h, m, sec), nil
}

// String renders HH:MM:SS
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// MarshalJSON implements json.Marshaler
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// Validate checks the campaign invariants.
func (c *CampaignDescriptor) Validate() error {
	switch c.Kind {
	case CampaignKindInstant, CampaignKindDuration:
	default:
		return fmt.Errorf("campaign %s: unknown kind %q", c.ID, c.Kind)
	}

	if c.RequiredPresencePercentage < 1 || c.RequiredPresencePercentage > 100 {
		return fmt.Errorf("campaign %s: presence percentage %d out of range",
			c.ID, c.RequiredPresencePercentage)
	}

	if c.ProximityDelaySeconds < 0 {
		return fmt.Errorf("campaign %s: negative proximity delay", c.ID)
	}

	for i, b := range c.TimeBlocks {
		if b.DayOfWeek < 0 || b.DayOfWeek > 6 {
			return fmt.Errorf("campaign %s: block %d day %d out of range", c.ID, i, b.DayOfWeek)
		}
		if b.Start >= b.End {
			return fmt.Errorf("campaign %s: block %d start %s not before end %s",
				c.ID, i, b.Start, b.End)
		}
		if b.PresenceOverride != nil && (*b.PresenceOverride < 1 || *b.PresenceOverride > 100) {
			return fmt.Errorf("campaign %s: block %d override %d out of range",
				c.ID, i, *b.PresenceOverride)
		}
	}

	return nil
}

// IntPtr is a convenience for building presence overrides.
func IntPtr(v int) *int {
	return &v
}
