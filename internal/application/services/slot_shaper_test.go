package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/erpbridge/backend/internal/application/services"
	"github.com/zatekoja/erpbridge/backend/internal/domain/entities"
	"github.com/zatekoja/erpbridge/backend/internal/domain/providers"
)

func slotAt(day, hour int) *entities.ResolvedSlot {
	return &entities.ResolvedSlot{
		RawAvailabilitySlot: entities.RawAvailabilitySlot{
			Date:       time.Date(2026, 10, day, hour, 0, 0, 0, time.UTC),
			DoctorCode: "D1",
		},
	}
}

func slotDates(slots []*entities.ResolvedSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Date.Format("02T15"))
	}
	return out
}

func TestDefaultSlotShaper_Shape(t *testing.T) {
	shaper := services.NewDefaultSlotShaper()
	input := []*entities.ResolvedSlot{
		slotAt(17, 9),
		slotAt(16, 14),
		slotAt(16, 9),
		slotAt(18, 20),
		slotAt(16, 10),
	}

	t.Run("sorts by date", func(t *testing.T) {
		out := shaper.Shape(input, providers.ShapeOptions{SortMethod: entities.SortByDate})
		assert.Equal(t, []string{"16T09", "16T10", "16T14", "17T09", "18T20"}, slotDates(out))
	})

	t.Run("filters by period", func(t *testing.T) {
		out := shaper.Shape(input, providers.ShapeOptions{Period: entities.PeriodMorning})
		assert.Equal(t, []string{"16T09", "16T10", "17T09"}, slotDates(out))
	})

	t.Run("spread takes one slot per day first", func(t *testing.T) {
		out := shaper.Shape(input, providers.ShapeOptions{SortMethod: entities.SortSpread, Limit: 4})
		assert.Equal(t, []string{"16T09", "17T09", "18T20", "16T10"}, slotDates(out))
	})

	t.Run("random keeps every slot", func(t *testing.T) {
		out := shaper.Shape(input, providers.ShapeOptions{SortMethod: entities.SortRandom})
		assert.ElementsMatch(t, slotDates(input), slotDates(out))
	})

	t.Run("leaves input untouched", func(t *testing.T) {
		shaper.Shape(input, providers.ShapeOptions{Limit: 1})
		assert.Equal(t, "17T09", input[0].Date.Format("02T15"))
		assert.Len(t, input, 5)
	})
}
