package calcom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"voicecal-mcp/internal/upstream"
)

// Slot is a single bookable start time.
type Slot struct {
	Time string `json:"time"`
}

// Availability groups slots by calendar day (YYYY-MM-DD).
type Availability struct {
	Slots map[string][]Slot `json:"slots"`
}

// Days returns the days that have slots, in order.
func (a *Availability) Days() []string {
	days := make([]string, 0, len(a.Slots))
	for d := range a.Slots {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// Count returns the total number of slots.
func (a *Availability) Count() int {
	n := 0
	for _, s := range a.Slots {
		n += len(s)
	}
	return n
}

// parseAvailability accepts the shapes the slots endpoint has been seen to
// return and normalizes them:
//
//	{"slots": {"2024-01-01": [{"time": ...}]}}
//	{"slots": [{"time": ...}]}
//	{"data": {"slots": ...}}
//	[{"time": ...}]
func parseAvailability(raw json.RawMessage) (*Availability, error) {
	return parseAvailabilityDepth(raw, 0)
}

func parseAvailabilityDepth(raw json.RawMessage, depth int) (*Availability, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || depth > 1 {
		return nil, shapeError("empty slots payload")
	}
	switch raw[0] {
	case '[':
		return groupSlots(raw)
	case '{':
		var probe struct {
			Slots json.RawMessage `json:"slots"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, shapeError(err.Error())
		}
		switch {
		case len(probe.Slots) > 0:
			return parseSlotsField(probe.Slots)
		case len(probe.Data) > 0:
			return parseAvailabilityDepth(probe.Data, depth+1)
		}
		return nil, shapeError(`no "slots" field`)
	default:
		return nil, shapeError("slots payload is not an object or array")
	}
}

func parseSlotsField(raw json.RawMessage) (*Availability, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		return groupSlots(raw)
	}
	var days map[string][]Slot
	if err := json.Unmarshal(raw, &days); err != nil || days == nil {
		return nil, shapeError(`"slots" is not a map of days`)
	}
	for day, slots := range days {
		for _, s := range slots {
			if s.Time == "" {
				return nil, shapeError(fmt.Sprintf("slot without time on %s", day))
			}
		}
	}
	return &Availability{Slots: days}, nil
}

func groupSlots(raw json.RawMessage) (*Availability, error) {
	var flat []Slot
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, shapeError("slot list is not an array of objects")
	}
	out := &Availability{Slots: make(map[string][]Slot)}
	for _, s := range flat {
		t, err := time.Parse(time.RFC3339, s.Time)
		if err != nil {
			return nil, shapeError(fmt.Sprintf("slot time %q", s.Time))
		}
		day := t.Format("2006-01-02")
		out.Slots[day] = append(out.Slots[day], s)
	}
	return out, nil
}

func shapeError(detail string) error {
	return fmt.Errorf("calcom slots: %w: %s", upstream.ErrUnexpectedShape, detail)
}
