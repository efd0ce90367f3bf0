package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake - управляемые часы для тестов
type Fake struct {
	mtx   sync.RWMutex
	now   time.Time
	zones map[uuid.UUID]*time.Location
}

func NewFake(now time.Time) *Fake {
	return &Fake{
		now:   now,
		zones: make(map[uuid.UUID]*time.Location),
	}
}

func (f *Fake) Now() time.Time {
	f.mtx.RLock()
	defer f.mtx.RUnlock()
	return f.now
}

func (f *Fake) Set(now time.Time) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.now = now
}

func (f *Fake) Advance(d time.Duration) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.now = f.now.Add(d)
}

func (f *Fake) UserTimezone(userID uuid.UUID) *time.Location {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	if loc, ok := f.zones[userID]; ok {
		return loc
	}
	return time.UTC
}

func (f *Fake) SetUserTimezone(userID uuid.UUID, loc *time.Location) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.zones[userID] = loc
}
