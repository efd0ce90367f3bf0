package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"taskcore/internal/handlers/dto"
	"taskcore/internal/logger"
	"taskcore/internal/models/task"

	"go.uber.org/zap"
)

type TemplateHandler struct {
	TemplateService TemplateService
}

func NewTemplateHandler(templateService TemplateService) TemplateHandler {
	return TemplateHandler{
		TemplateService: templateService,
	}
}

func (s *TemplateHandler) PostTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if request.Title == "" {
		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}
	if request.Rule == "" {
		responseWithError(w, http.StatusBadRequest, "правило повторения не может быть пустым")
		return
	}

	priority := task.PriorityMedium
	if request.Priority != "" {
		priority = task.Priority(request.Priority)
		if !task.ValidPriority(priority) {
			responseWithError(w, http.StatusBadRequest, "неверный приоритет: допустимы low/medium/high")
			return
		}
	}

	created, err := s.TemplateService.CreateTemplate(r.Context(), ownerID, request.Title, request.Description, priority, request.EstimateMinutes, request.Rule)
	if err != nil {
		handleServiceError(w, err, "create_template")
		return
	}

	logger.Info("HTTP_OUT: Шаблон создан",
		zap.String("template_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, dto.FromTemplate(created))
}

func (s *TemplateHandler) GetTemplates(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	templates, err := s.TemplateService.GetTemplates(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, err, "get_templates")
		return
	}

	responseWithJSON(w, http.StatusOK, dto.FromTemplateList(templates))
}

func (s *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if request.Title != nil && *request.Title == "" {
		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}

	updated, err := s.TemplateService.UpdateTemplate(r.Context(), id, ownerID, request.Title, request.Description, request.Rule, request.Active)
	if err != nil {
		handleServiceError(w, err, "update_template")
		return
	}

	logger.Info("HTTP_OUT: Шаблон обновлён",
		zap.String("template_id", updated.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromTemplate(updated))
}

// PauseTemplate останавливает генерацию: DELETE не удаляет правило,
// а переводит его в неактивное состояние
func (s *TemplateHandler) PauseTemplate(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	paused, err := s.TemplateService.PauseTemplate(r.Context(), id, ownerID)
	if err != nil {
		handleServiceError(w, err, "pause_template")
		return
	}

	responseWithJSON(w, http.StatusOK, dto.FromTemplate(paused))
}
