package services

import (
	"math/rand/v2"
	"sort"
	"time"

	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
)

// DefaultSlotShaper filters slots by period of day, orders them by the
// requested sort method and applies the limit
type DefaultSlotShaper struct {
	shuffle func(n int, swap func(i, j int))
}

// NewDefaultSlotShaper creates a slot shaper using the global random source
func NewDefaultSlotShaper() *DefaultSlotShaper {
	return &DefaultSlotShaper{shuffle: rand.Shuffle}
}

var _ providers.SlotShaper = (*DefaultSlotShaper)(nil)

// Shape returns a new slice; the input is left untouched
func (s *DefaultSlotShaper) Shape(slots []*entities.ResolvedSlot, opts providers.ShapeOptions) []*entities.ResolvedSlot {
	out := make([]*entities.ResolvedSlot, 0, len(slots))
	for _, slot := range slots {
		if opts.Period != "" && !opts.Period.Contains(slot.Date) {
			continue
		}
		out = append(out, slot)
	}

	sortByDate(out)
	switch opts.SortMethod {
	case entities.SortSpread:
		out = spreadAcrossDays(out)
	case entities.SortRandom:
		s.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func sortByDate(slots []*entities.ResolvedSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Date.Before(slots[j].Date)
	})
}

// spreadAcrossDays takes the first slot of every day, then the second, and
// so on, so a limit shows as many days as possible. Input must be sorted.
func spreadAcrossDays(slots []*entities.ResolvedSlot) []*entities.ResolvedSlot {
	var days [][]*entities.ResolvedSlot
	var current time.Time
	for _, slot := range slots {
		day := time.Date(slot.Date.Year(), slot.Date.Month(), slot.Date.Day(), 0, 0, 0, 0, slot.Date.Location())
		if len(days) == 0 || !day.Equal(current) {
			days = append(days, nil)
			current = day
		}
		days[len(days)-1] = append(days[len(days)-1], slot)
	}

	out := make([]*entities.ResolvedSlot, 0, len(slots))
	for round := 0; len(out) < len(slots); round++ {
		for _, day := range days {
			if round < len(day) {
				out = append(out, day[round])
			}
		}
	}
	return out
}
