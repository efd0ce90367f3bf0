package achievement

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const CategoryTasks Category = "tasks"
const CategoryStreak Category = "streak"
const CategoryFocus Category = "focus"
const CategoryNotes Category = "notes"

// PerkKind - закрытый набор видов бонусов; суммируются обобщённо,
// без ветвления по виду в местах вызова
type PerkKind string

const PerkMaxTasks PerkKind = "max_tasks"
const PerkMaxNotes PerkKind = "max_notes"
const PerkDailyAiCredits PerkKind = "daily_ai_credits"

type Perk struct {
	Kind  PerkKind `json:"kind"`
	Value int      `json:"value"`
}

type Definition struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Category  Category `json:"category"`
	Threshold int      `json:"threshold"`
	Perk      *Perk    `json:"perk,omitempty"`
}

// Unlock - событие разблокировки, отдаётся наружу вместе с результатом операции
type Unlock struct {
	AchievementID string `json:"achievement_id"`
	Perk          *Perk  `json:"perk,omitempty"`
}

type Tier string

const TierFree Tier = "free"
const TierPro Tier = "pro"

type Limits struct {
	MaxTasks       int `json:"max_tasks"`
	MaxNotes       int `json:"max_notes"`
	DailyAiCredits int `json:"daily_ai_credits"`
}

// State - агрегат геймификации, один на пользователя.
// LastCompletionDate - календарная дата (YYYY-MM-DD) в таймзоне пользователя,
// не timestamp. Version - тот же оптимистичный CAS, что и у задач.
type State struct {
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	Tier               Tier       `json:"tier" db:"tier"`
	LifetimeCompleted  int        `json:"lifetime_completed" db:"lifetime_completed"`
	CurrentStreak      int        `json:"current_streak" db:"current_streak"`
	LongestStreak      int        `json:"longest_streak" db:"longest_streak"`
	LastCompletionDate string     `json:"last_completion_date,omitempty" db:"last_completion_date"`
	FocusSessions      int        `json:"focus_sessions" db:"focus_sessions"`
	NotesConverted     int        `json:"notes_converted" db:"notes_converted"`
	Unlocked           []string   `json:"unlocked" db:"unlocked"`
	Version            int        `json:"version" db:"version"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

func NewState(userID uuid.UUID) *State {
	return &State{
		UserID:   userID,
		Tier:     TierFree,
		Unlocked: []string{},
		Version:  1,
	}
}

func (s *State) HasUnlocked(id string) bool {
	for _, u := range s.Unlocked {
		if u == id {
			return true
		}
	}
	return false
}

func (s *State) Counter(c Category) int {
	switch c {
	case CategoryTasks:
		return s.LifetimeCompleted
	case CategoryStreak:
		return s.CurrentStreak
	case CategoryFocus:
		return s.FocusSessions
	case CategoryNotes:
		return s.NotesConverted
	}
	return 0
}

func (s *State) Clone() *State {
	cp := *s
	cp.Unlocked = append([]string{}, s.Unlocked...)
	if s.UpdatedAt != nil {
		u := *s.UpdatedAt
		cp.UpdatedAt = &u
	}
	return &cp
}

func BaseLimits(tier Tier) Limits {
	switch tier {
	case TierPro:
		return Limits{MaxTasks: 500, MaxNotes: 200, DailyAiCredits: 50}
	default:
		return Limits{MaxTasks: 50, MaxNotes: 20, DailyAiCredits: 5}
	}
}

// EffectiveLimits всегда вычисляется заново от базового тарифа и набора
// разблокировок - кэшированного поля, способного разъехаться с источником, нет
func EffectiveLimits(s *State) Limits {
	limits := BaseLimits(s.Tier)
	byID := DefinitionsByID()
	for _, id := range s.Unlocked {
		def, ok := byID[id]
		if !ok || def.Perk == nil {
			continue
		}
		switch def.Perk.Kind {
		case PerkMaxTasks:
			limits.MaxTasks += def.Perk.Value
		case PerkMaxNotes:
			limits.MaxNotes += def.Perk.Value
		case PerkDailyAiCredits:
			limits.DailyAiCredits += def.Perk.Value
		}
	}
	return limits
}
