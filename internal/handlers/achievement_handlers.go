package handlers

import (
	"net/http"

	"taskcore/internal/handlers/dto"
	"taskcore/internal/logger"
	"taskcore/internal/notify"
)

type AchievementHandler struct {
	AchievementService AchievementService
	Inbox              *notify.InboxSink
}

func NewAchievementHandler(achievementService AchievementService, inbox *notify.InboxSink) AchievementHandler {
	return AchievementHandler{
		AchievementService: achievementService,
		Inbox:              inbox,
	}
}

// GetAchievements отдаёт агрегат геймификации вместе с действующими
// лимитами тарифа (база + бонусы открытых перков)
func (s *AchievementHandler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	state, err := s.AchievementService.GetState(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, "get_achievements")
		return
	}

	limits, err := s.AchievementService.EffectiveLimits(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, "get_achievements")
		return
	}

	responseWithJSON(w, http.StatusOK, dto.FromAchievementState(state, limits))
}

func (s *AchievementHandler) PostFocusSession(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	unlocks, state, err := s.AchievementService.OnFocusSessionCompleted(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, "focus_session")
		return
	}

	responseWithPayloads(w, http.StatusOK,
		toPayload("focus_sessions", state.FocusSessions),
		toPayload("unlocks", unlocks),
	)
}

func (s *AchievementHandler) PostNoteConverted(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	unlocks, state, err := s.AchievementService.OnNoteConverted(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err, "note_converted")
		return
	}

	responseWithPayloads(w, http.StatusOK,
		toPayload("notes_converted", state.NotesConverted),
		toPayload("unlocks", unlocks),
	)
}

// GetInbox отдаёт и очищает накопленные внутриприложенческие сообщения
func (s *AchievementHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	msgs := s.Inbox.Drain(userID)
	if msgs == nil {
		msgs = []notify.Message{}
	}
	responseWithJSON(w, http.StatusOK, msgs)
}
