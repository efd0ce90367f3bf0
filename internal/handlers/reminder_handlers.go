package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"taskcore/internal/handlers/dto"
	"taskcore/internal/logger"
	"taskcore/internal/models/reminder"

	"go.uber.org/zap"
)

type ReminderHandler struct {
	ReminderService ReminderService
}

func NewReminderHandler(reminderService ReminderService) ReminderHandler {
	return ReminderHandler{
		ReminderService: reminderService,
	}
}

func (s *ReminderHandler) PostReminder(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	created, err := s.ReminderService.CreateReminder(r.Context(), taskID, ownerID, reminder.Kind(request.Kind), request.OffsetMinutes, request.At)
	if err != nil {
		handleServiceError(w, err, "create_reminder")
		return
	}

	logger.Info("HTTP_OUT: Напоминание создано",
		zap.String("reminder_id", created.UUID.String()),
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, dto.FromReminder(created))
}

func (s *ReminderHandler) GetReminders(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	reminders, err := s.ReminderService.GetReminders(r.Context(), taskID, ownerID)
	if err != nil {
		handleServiceError(w, err, "get_reminders")
		return
	}

	responseWithJSON(w, http.StatusOK, dto.FromReminderList(reminders))
}

func (s *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	reminderID, ok := parseID(w, r, "reminder_id")
	if !ok {
		return
	}

	if err := s.ReminderService.DeleteReminder(r.Context(), reminderID, ownerID); err != nil {
		handleServiceError(w, err, "delete_reminder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
