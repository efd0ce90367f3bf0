package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"taskcore/internal/handlers/dto"
	"taskcore/internal/logger"
	"taskcore/internal/models/task"

	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if request.Title == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "title"),
			zap.String("error", "empty_field"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}

	opts := []task.TaskOption{
		task.WithTitle(request.Title),
		task.WithDescription(request.Description),
	}
	if request.Priority != "" {
		opt := task.WithPriority(task.Priority(request.Priority))
		if opt == nil {
			responseWithError(w, http.StatusBadRequest, "неверный приоритет: допустимы low/medium/high")
			return
		}
		opts = append(opts, opt)
	}
	if request.DueTime != nil {
		opts = append(opts, task.WithDueTime(request.DueTime))
	}
	if request.EstimateMinutes != nil {
		opt := task.WithEstimateMinutes(*request.EstimateMinutes)
		if opt == nil {
			responseWithError(w, http.StatusBadRequest, "оценка должна быть положительной")
			return
		}
		opts = append(opts, opt)
	}

	logger.Info("HTTP: Вызов сервиса создания задач")
	created, err := s.TaskService.CreateTask(r.Context(), ownerID, opts...)
	if err != nil {
		handleServiceError(w, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, dto.FromTask(created))
}

func (s *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			responseWithError(w, http.StatusBadRequest, "неверное значение page")
			return
		}
		page = parsed
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			responseWithError(w, http.StatusBadRequest, "неверное значение limit")
			return
		}
		limit = parsed
	}

	includeHidden := r.URL.Query().Get("include_hidden") == "true"

	tasks, err := s.TaskService.GetTasks(r.Context(), ownerID, includeHidden, page, limit)
	if err != nil {
		handleServiceError(w, err, "get_tasks")
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
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

	t, err := s.TaskService.GetTask(r.Context(), id, ownerID)
	if err != nil {
		handleServiceError(w, err, "get_task")
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", t.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromTask(t))
}

// UpdateTaskByID - версионно защищённый patch. При несовпадении версии
// клиент получает 409 с актуальным состоянием в details.
func (s *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
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

	var request dto.UpdateTaskRequest
	decoder := json.NewDecoder(r.Body)
	defer r.Body.Close()

	if err := decoder.Decode(&request); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}

	if request.Version < 1 {
		responseWithError(w, http.StatusBadRequest, "version обязательна и должна быть положительной")
		return
	}

	opts, errMsg := buildPatch(&request)
	if errMsg != "" {
		responseWithError(w, http.StatusBadRequest, errMsg)
		return
	}
	if len(opts) == 0 {
		responseWithError(w, http.StatusBadRequest, "пустой patch: нечего обновлять")
		return
	}

	logger.Info("HTTP: запрос к сервису обновления данных")

	result, err := s.TaskService.UpdateTask(r.Context(), id, ownerID, request.Version, opts...)
	if err != nil {
		handleServiceError(w, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", result.Task.UUID.String()),
		zap.Int("version", result.Task.Version),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromMutation(result))
}

func buildPatch(request *dto.UpdateTaskRequest) ([]task.TaskOption, string) {
	var opts []task.TaskOption

	if request.Title != nil {
		if *request.Title == "" {
			return nil, "название не может быть пустым"
		}
		opts = append(opts, task.WithTitle(*request.Title))
	}
	if request.Description != nil {
		opts = append(opts, task.WithDescription(*request.Description))
	}
	if request.Priority != nil {
		opt := task.WithPriority(task.Priority(*request.Priority))
		if opt == nil {
			return nil, "неверный приоритет: допустимы low/medium/high"
		}
		opts = append(opts, opt)
	}
	if request.ClearDueTime {
		opts = append(opts, task.WithDueTime(nil))
	} else if request.DueTime != nil {
		opts = append(opts, task.WithDueTime(request.DueTime))
	}
	if request.EstimateMinutes != nil {
		opt := task.WithEstimateMinutes(*request.EstimateMinutes)
		if opt == nil {
			return nil, "оценка должна быть положительной"
		}
		opts = append(opts, opt)
	}
	if request.AddFocusSeconds != nil {
		opt := task.WithAddedFocusSeconds(*request.AddFocusSeconds)
		if opt == nil {
			return nil, "фокус-время должно быть положительным"
		}
		opts = append(opts, opt)
	}
	if request.Archived != nil {
		opts = append(opts, task.WithArchived(*request.Archived))
	}
	if request.Uncomplete {
		opts = append(opts, task.WithUncompleted())
	}
	return opts, ""
}

func (s *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
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

	var request dto.CompleteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	if request.Version < 1 {
		responseWithError(w, http.StatusBadRequest, "version обязательна и должна быть положительной")
		return
	}

	cause := task.CauseManual
	if request.Cause != "" {
		cause = task.Cause(request.Cause)
	}

	result, err := s.TaskService.CompleteTask(r.Context(), id, ownerID, request.Version, cause)
	if err != nil {
		handleServiceError(w, err, "complete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача завершена",
		zap.String("task_id", result.Task.UUID.String()),
		zap.Int("unlocks", len(result.Unlocks)),
		zap.Bool("next_instance", result.NextInstance != nil),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromMutation(result))
}

// DeleteTaskByID прячет задачу и возвращает квитанцию восстановления
func (s *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
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

	logger.Info("HTTP: Обращение к сервису для удаления задачи")

	handle, err := s.TaskService.DeleteTask(r.Context(), id, ownerID)
	if err != nil {
		handleServiceError(w, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id.String()),
		zap.String("tombstone_id", handle.TombstoneID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromHandle(handle))
}

func (s *TaskHandler) RecoverTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	tombstoneID, ok := parseID(w, r, "tombstone_id")
	if !ok {
		return
	}

	recovered, err := s.TaskService.RecoverTask(r.Context(), tombstoneID, ownerID)
	if err != nil {
		handleServiceError(w, err, "recover_task")
		return
	}

	logger.Info("HTTP_OUT: Задача восстановлена",
		zap.String("task_id", recovered.UUID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, dto.FromTask(recovered))
}

func (s *TaskHandler) PostSubtask(w http.ResponseWriter, r *http.Request) {
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

	var request dto.CreateSubtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	if request.Title == "" {
		responseWithError(w, http.StatusBadRequest, "название не может быть пустым")
		return
	}

	created, err := s.TaskService.AddSubtask(r.Context(), taskID, ownerID, request.Title)
	if err != nil {
		handleServiceError(w, err, "add_subtask")
		return
	}

	responseWithJSON(w, http.StatusCreated, created)
}

func (s *TaskHandler) GetSubtasks(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	subtasks, err := s.TaskService.GetSubtasks(r.Context(), taskID, ownerID)
	if err != nil {
		handleServiceError(w, err, "get_subtasks")
		return
	}

	responseWithJSON(w, http.StatusOK, subtasks)
}

func (s *TaskHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	subtaskID, ok := parseID(w, r, "subtask_id")
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}

	var request dto.ToggleSubtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	updated, err := s.TaskService.ToggleSubtask(r.Context(), taskID, subtaskID, ownerID, request.Completed)
	if err != nil {
		handleServiceError(w, err, "toggle_subtask")
		return
	}

	responseWithJSON(w, http.StatusOK, updated)
}

func (s *TaskHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	ownerID, ok := ownerFromContext(w, r)
	if !ok {
		return
	}
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	subtaskID, ok := parseID(w, r, "subtask_id")
	if !ok {
		return
	}

	if err := s.TaskService.DeleteSubtask(r.Context(), taskID, subtaskID, ownerID); err != nil {
		handleServiceError(w, err, "delete_subtask")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		responseWithPayloads(w, http.StatusServiceUnavailable,
			toPayload("status", "unhealthy"),
			toPayload("error", err.Error()),
		)
		return
	}

	responseWithPayloads(w, http.StatusOK, toPayload("status", "ok"))
}
