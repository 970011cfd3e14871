package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
	testNow time.Time
}

func (s *ManagerTestSuite) SetupTest() {
	s.testNow = time.Date(2025, 10, 31, 10, 0, 0, 0, time.UTC)
	s.manager = NewManager(time.Minute)
	s.manager.now = func() time.Time { return s.testNow }
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) TestDialogFlow() {
	const user int64 = 42

	s.Equal(StateNone, s.manager.GetState(user))

	s.manager.Start(user, "slot-1", "10:30")
	s.Equal(StateReserveName, s.manager.GetState(user))

	s.True(s.manager.Advance(user, StateReserveEmail, func(d *Draft) { d.Name = "Маша" }))
	s.True(s.manager.Advance(user, StateReserveNote, func(d *Draft) { d.Email = "masha@example.com" }))
	s.Equal(StateReserveNote, s.manager.GetState(user))

	draft, ok := s.manager.GetDraft(user)
	s.Require().True(ok)
	s.Equal(Draft{SlotID: "slot-1", SlotTime: "10:30", Name: "Маша", Email: "masha@example.com"}, draft)

	s.manager.ClearState(user)
	s.Equal(StateNone, s.manager.GetState(user))
	_, ok = s.manager.GetDraft(user)
	s.False(ok)
}

func (s *ManagerTestSuite) TestAdvanceWithoutDialog() {
	s.False(s.manager.Advance(7, StateReserveEmail, nil))
	s.Equal(StateNone, s.manager.GetState(7))
}

func (s *ManagerTestSuite) TestStartReplacesDraft() {
	s.manager.Start(1, "a", "10:00")
	s.manager.Advance(1, StateReserveEmail, func(d *Draft) { d.Name = "Маша" })

	s.manager.Start(1, "b", "11:00")
	draft, ok := s.manager.GetDraft(1)
	s.Require().True(ok)
	s.Equal(Draft{SlotID: "b", SlotTime: "11:00"}, draft)
	s.Equal(StateReserveName, s.manager.GetState(1))
}

func (s *ManagerTestSuite) TestDialogExpires() {
	s.manager.Start(1, "a", "10:00")
	s.manager.Start(2, "b", "10:30")

	s.testNow = s.testNow.Add(30 * time.Second)
	s.True(s.manager.Advance(2, StateReserveEmail, nil))

	s.testNow = s.testNow.Add(45 * time.Second)
	s.Equal(StateNone, s.manager.GetState(1))
	s.Equal(StateReserveEmail, s.manager.GetState(2))
	s.False(s.manager.Advance(1, StateReserveEmail, nil))

	s.testNow = s.testNow.Add(time.Minute)
	s.Equal(1, s.manager.Sweep())
	s.Equal(StateNone, s.manager.GetState(2))
}
