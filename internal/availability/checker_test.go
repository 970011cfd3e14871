package availability

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Freeeeeet/booking_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2025-10-31"

func confirmed(id, start string, duration int, email, note string) *model.Reservation {
	return &model.Reservation{
		ID:              id,
		Date:            testDate,
		StartTime:       start,
		DurationMinutes: duration,
		Email:           email,
		Note:            note,
		Confirmed:       true,
	}
}

func TestNewChecker_RejectsNonPositiveTick(t *testing.T) {
	_, err := NewChecker(0)
	assert.ErrorIs(t, err, ErrInvalidTick)

	_, err = NewChecker(-15)
	assert.ErrorIs(t, err, ErrInvalidTick)
}

func TestTicks(t *testing.T) {
	c, err := NewChecker(15)
	require.NoError(t, err)

	tests := []struct {
		name     string
		start    string
		duration int
		want     []int
		wantErr  error
	}{
		{name: "single tick", start: "00:00", duration: 15, want: []int{0}},
		{name: "rounds up", start: "10:00", duration: 20, want: []int{40, 41}},
		{name: "exact multiple", start: "10:00", duration: 45, want: []int{40, 41, 42}},
		{name: "unaligned start covers touched ticks", start: "10:10", duration: 15, want: []int{40, 41}},
		{name: "ends at midnight", start: "23:45", duration: 15, want: []int{95}},
		{name: "zero duration", start: "10:00", duration: 0, wantErr: ErrInvalidDuration},
		{name: "negative duration", start: "10:00", duration: -30, wantErr: ErrInvalidDuration},
		{name: "bad clock", start: "25:00", duration: 30, wantErr: ErrInvalidTime},
		{name: "garbage clock", start: "soon", duration: 30, wantErr: ErrInvalidTime},
		{name: "past midnight", start: "23:45", duration: 30, wantErr: ErrOutOfDay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Ticks(tt.start, tt.duration)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheck_FreeRangeAccepted(t *testing.T) {
	c, _ := NewChecker(15)
	existing := []*model.Reservation{
		confirmed("a", "10:00", 30, "ana@example.com", "catrina"),
		confirmed("b", "11:00", 60, "bea@example.com", "zombie"),
	}

	err := c.Check(confirmed("", "10:30", 30, "carla@example.com", "vampire"), existing)
	assert.NoError(t, err)
}

func TestCheck_OverlapRejected(t *testing.T) {
	c, _ := NewChecker(15)
	existing := []*model.Reservation{
		confirmed("a", "10:00", 30, "ana@example.com", "catrina"),
	}

	err := c.Check(confirmed("", "10:15", 30, "carla@example.com", "vampire"), existing)
	require.ErrorIs(t, err, ErrOverlap)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "a", conflict.ReservationID)
	assert.Equal(t, "10:00", conflict.StartTime)
}

func TestCheck_RoundedDurationOverlaps(t *testing.T) {
	c, _ := NewChecker(30)
	existing := []*model.Reservation{
		confirmed("a", "10:00", 10, "ana@example.com", "catrina"),
	}

	// 10 минут занимают весь тик 10:00-10:30
	err := c.Check(confirmed("", "10:00", 30, "carla@example.com", "vampire"), existing)
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestCheck_IgnoresUnconfirmedAndOtherDates(t *testing.T) {
	c, _ := NewChecker(15)
	pending := confirmed("a", "10:00", 60, "ana@example.com", "catrina")
	pending.Confirmed = false
	otherDay := confirmed("b", "10:00", 60, "bea@example.com", "zombie")
	otherDay.Date = "2025-11-01"

	err := c.Check(confirmed("", "10:00", 60, "carla@example.com", "vampire"), []*model.Reservation{pending, otherDay})
	assert.NoError(t, err)
}

func TestCheck_DuplicateContactAndMakeupRejected(t *testing.T) {
	c, _ := NewChecker(15)
	existing := []*model.Reservation{
		confirmed("a", "10:00", 30, "Ana@Example.com", "Catrina"),
	}

	err := c.Check(confirmed("", "15:00", 30, "ana@example.com ", "catrina"), existing)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Другой тип макияжа тем же человеком допустим
	err = c.Check(confirmed("", "15:00", 30, "ana@example.com", "zombie"), existing)
	assert.NoError(t, err)
}

func TestCheckOverlap_SkipsDuplicates(t *testing.T) {
	c, _ := NewChecker(15)
	existing := []*model.Reservation{
		confirmed("a", "10:00", 30, "ana@example.com", "catrina"),
	}

	err := c.CheckOverlap(confirmed("", "15:00", 30, "ana@example.com", "catrina"), existing)
	assert.NoError(t, err)

	err = c.CheckOverlap(confirmed("", "10:15", 30, "bob@example.com", "zombie"), existing)
	assert.ErrorIs(t, err, ErrOverlap)
}

func TestCheck_BookedSlotBlocksRange(t *testing.T) {
	c, _ := NewChecker(15)
	slot := &model.Slot{ID: "s1", Date: testDate, Time: "10:00", DurationMinutes: 30, Available: false, BookedBy: &model.Booker{Name: "Ana"}}

	err := c.Check(confirmed("", "10:00", 30, "bob@example.com", "zombie"), []*model.Reservation{slot.Occupancy()})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "slot:s1", conflict.ReservationID)
	assert.ErrorIs(t, err, ErrOverlap)

	// Свободный слот ничего не занимает
	slot.Available = true
	err = c.Check(confirmed("", "10:00", 30, "bob@example.com", "zombie"), []*model.Reservation{slot.Occupancy()})
	assert.NoError(t, err)
}

func TestCheck_InvalidDurationAlwaysRejected(t *testing.T) {
	c, _ := NewChecker(15)
	for _, d := range []int{0, -1, -15, -1440} {
		err := c.Check(confirmed("", "10:00", d, "x@example.com", ""), nil)
		assert.ErrorIs(t, err, ErrInvalidDuration, "duration %d", d)
	}
}

func TestFreeStarts(t *testing.T) {
	c, _ := NewChecker(30)
	existing := []*model.Reservation{
		confirmed("a", "11:00", 60, "ana@example.com", "catrina"),
	}

	starts, err := c.FreeStarts(testDate, 60, existing, "10:00", "13:00")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "12:00"}, starts)

	starts, err = c.FreeStarts(testDate, 30, existing, "10:10", "11:30")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30"}, starts)

	_, err = c.FreeStarts(testDate, 0, existing, "10:00", "13:00")
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

// Принятые брони одной даты никогда не делят тики
func TestCheck_AcceptedReservationsAreDisjoint(t *testing.T) {
	c, _ := NewChecker(15)
	rng := rand.New(rand.NewSource(42))

	var accepted []*model.Reservation
	for i := 0; i < 500; i++ {
		start := rng.Intn(20*60/5) * 5
		candidate := confirmed(
			fmt.Sprintf("r%d", i),
			FormatClock(start),
			rng.Intn(120)-10,
			fmt.Sprintf("user%d@example.com", i),
			"catrina",
		)
		if err := c.Check(candidate, accepted); err == nil {
			accepted = append(accepted, candidate)
		}
	}
	require.NotEmpty(t, accepted)

	seen := make(map[int]string)
	for _, r := range accepted {
		ticks, err := c.Ticks(r.StartTime, r.DurationMinutes)
		require.NoError(t, err)
		for _, tick := range ticks {
			owner, taken := seen[tick]
			require.False(t, taken, "tick %d shared by %s and %s", tick, owner, r.ID)
			seen[tick] = r.ID
		}
	}
}
