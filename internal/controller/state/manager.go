package state

import (
	"sync"
	"time"
)

// DefaultTTL время жизни незавершённого диалога
const DefaultTTL = 30 * time.Minute

// Manager управляет состояниями пользователей
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData // telegramID -> UserData
	ttl    time.Duration
	now    func() time.Time
}

// NewManager создаёт новый менеджер состояний
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		states: make(map[int64]*UserData),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GetState получает текущее состояние пользователя
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, exists := sm.states[telegramID]; exists && !sm.expired(userData) {
		return userData.State
	}
	return StateNone
}

// Start начинает диалог бронирования выбранного слота
func (sm *Manager) Start(telegramID int64, slotID, slotTime string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.states[telegramID] = &UserData{
		State:     StateReserveName,
		Draft:     Draft{SlotID: slotID, SlotTime: slotTime},
		UpdatedAt: sm.now(),
	}
}

// Advance переводит диалог в следующее состояние, применяя изменения к черновику.
// Возвращает false, если активного диалога нет.
func (sm *Manager) Advance(telegramID int64, next UserState, update func(*Draft)) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData, exists := sm.states[telegramID]
	if !exists || sm.expired(userData) {
		delete(sm.states, telegramID)
		return false
	}

	if update != nil {
		update(&userData.Draft)
	}
	userData.State = next
	userData.UpdatedAt = sm.now()
	return true
}

// GetDraft возвращает копию черновика
func (sm *Manager) GetDraft(telegramID int64) (Draft, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	userData, exists := sm.states[telegramID]
	if !exists || sm.expired(userData) {
		return Draft{}, false
	}
	return userData.Draft, true
}

// ClearState очищает состояние и данные пользователя
func (sm *Manager) ClearState(telegramID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.states, telegramID)
}

// Sweep удаляет просроченные диалоги и возвращает их количество
func (sm *Manager) Sweep() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	for id, userData := range sm.states {
		if sm.expired(userData) {
			delete(sm.states, id)
			removed++
		}
	}
	return removed
}

func (sm *Manager) expired(userData *UserData) bool {
	return sm.now().Sub(userData.UpdatedAt) > sm.ttl
}
