package zone

import (
	"fmt"
	"time"
)

type Definition struct {
	Name          string
	SafetyTimeout time.Duration
}

// Set is the fixed collection of zones configured at startup.
type Set struct {
	zones []*Zone
}

func NewSet(definitions []Definition) (*Set, error) {
	if len(definitions) == 0 {
		return nil, fmt.Errorf("at least one zone must be defined")
	}

	if len(definitions) > MaximumZones {
		return nil, fmt.Errorf("%d zones defined, maximum is %d", len(definitions), MaximumZones)
	}

	s := &Set{}

	for i, def := range definitions {
		if def.SafetyTimeout <= 0 {
			return nil, fmt.Errorf("zone %d has no safety timeout", i+1)
		}

		s.zones = append(s.zones, &Zone{
			Index:         Index(i),
			Name:          def.Name,
			SafetyTimeout: def.SafetyTimeout,
		})
	}

	return s, nil
}

func (s *Set) Len() int {
	return len(s.zones)
}

// Parse validates a one based zone number and returns its Index.
func (s *Set) Parse(number int) (Index, error) {
	if number < 1 || number > len(s.zones) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownZone, number)
	}

	return Index(number - 1), nil
}

func (s *Set) Zone(i Index) (*Zone, error) {
	if int(i) >= len(s.zones) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownZone, i)
	}

	return s.zones[i], nil
}

func (s *Set) All() []*Zone {
	return s.zones
}

func (s *Set) AnyArmed() bool {
	for _, z := range s.zones {
		if z.Armed() {
			return true
		}
	}

	return false
}

type Snapshot struct {
	Number        uint8
	Name          string
	State         string
	SafetyTimeout time.Duration
	Deadline      *time.Time `json:",omitempty"`
	Remaining     uint8
	Failures      int
	LastFailure   *Failure `json:",omitempty"`
}

func (s *Set) Snapshot(now time.Time) []Snapshot {
	snaps := make([]Snapshot, 0, len(s.zones))

	for _, z := range s.zones {
		snap := Snapshot{
			Number:        z.Index.Number(),
			Name:          z.Name,
			State:         z.Reported.String(),
			SafetyTimeout: z.SafetyTimeout,
			Remaining:     z.Remaining(now),
			Failures:      z.Failures,
		}

		if z.Armed() {
			deadline := z.Deadline
			snap.Deadline = &deadline
		}

		if z.LastFailure != nil {
			failure := *z.LastFailure
			snap.LastFailure = &failure
		}

		snaps = append(snaps, snap)
	}

	return snaps
}
