package campaign

import (
	"time"

	"github.com/beacon-checkin/beacon-checkin-server/internal/models"
)

// Evaluator decides whether a campaign may prompt a check-in at a given
// local time, and which presence requirement applies. It is stateless;
// callers pass the clock reading so the logic stays testable.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// IsAllowedNow reports whether the campaign may currently prompt.
//
// When the campaign has time blocks they take precedence over the
// legacy window and make it restrictive by default: some block must
// cover now, otherwise the answer is false. Without blocks the legacy
// single window applies; a disabled or incomplete window always
// allows.
func (e *Evaluator) IsAllowedNow(c *models.CampaignDescriptor, now time.Time) bool {
	if len(c.TimeBlocks) > 0 {
		_, ok := e.CurrentTimeBlock(c, now)
		return ok
	}

	return legacyWindowAllows(c, models.TimeOfDayFrom(now))
}

// CurrentTimeBlock returns the first block covering now, if any. Block
// bounds are inclusive on both ends.
func (e *Evaluator) CurrentTimeBlock(c *models.CampaignDescriptor, now time.Time) (models.TimeBlock, bool) {
	day := int(now.Weekday())
	tod := models.TimeOfDayFrom(now)

	for _, b := range c.TimeBlocks {
		if b.DayOfWeek == day && tod >= b.Start && tod <= b.End {
			return b, true
		}
	}

	return models.TimeBlock{}, false
}

// EffectivePresencePercentage returns the current block's override when
// one is active, and the campaign's base requirement otherwise.
func (e *Evaluator) EffectivePresencePercentage(c *models.CampaignDescriptor, now time.Time) int {
	if b, ok := e.CurrentTimeBlock(c, now); ok && b.PresenceOverride != nil {
		return *b.PresenceOverride
	}
	return c.RequiredPresencePercentage
}

// NextWindow finds the next upcoming block: first today's blocks whose
// end has not passed yet, then each following day in order. dayOffset
// is 0 for today, up to 6. The search never exceeds one week; ok is
// false when the campaign has no blocks at all.
func (e *Evaluator) NextWindow(c *models.CampaignDescriptor, now time.Time) (block models.TimeBlock, dayOffset int, ok bool) {
	if len(c.TimeBlocks) == 0 {
		return models.TimeBlock{}, 0, false
	}

	today := int(now.Weekday())
	tod := models.TimeOfDayFrom(now)

	for offset := 0; offset < 7; offset++ {
		day := (today + offset) % 7

		for _, b := range c.TimeBlocks {
			if b.DayOfWeek != day {
				continue
			}
			// today only counts blocks that have not finished yet
			if offset == 0 && b.End < tod {
				continue
			}
			return b, offset, true
		}
	}

	return models.TimeBlock{}, 0, false
}

// legacyWindowAllows evaluates the pre-time-block single window. A
// window whose end precedes its start spans midnight.
func legacyWindowAllows(c *models.CampaignDescriptor, tod models.TimeOfDay) bool {
	if !c.LegacyEnabled || c.LegacyStart == nil || c.LegacyEnd == nil {
		return true
	}

	start, end := *c.LegacyStart, *c.LegacyEnd

	if end >= start {
		return tod >= start && tod <= end
	}

	return tod >= start || tod <= end
}
