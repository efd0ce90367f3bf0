package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskcore/internal/clock"
	"taskcore/internal/logger"
	"taskcore/internal/models/task"
	"taskcore/internal/models/template"
	"taskcore/internal/repository"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// RecurrenceEngine превращает завершённый экземпляр регулярной задачи
// в следующий по правилу RRULE
type RecurrenceEngine struct {
	templates TemplateRepository
	tasks     TaskRepository
	clock     clock.Clock
}

func NewRecurrenceEngine(templates TemplateRepository, tasks TaskRepository, clk clock.Clock) *RecurrenceEngine {
	return &RecurrenceEngine{
		templates: templates,
		tasks:     tasks,
		clock:     clk,
	}
}

// NextOccurrence - чистая функция: ближайшее срабатывание правила строго
// после after. start - якорь отсчёта (момент создания шаблона), от него
// считаются COUNT и интервалы. nil - правило исчерпано.
func NextOccurrence(rule string, start, after time.Time) (*time.Time, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rule), "RRULE:"))
	opt, err := rrule.StrToROption(raw)
	if err != nil {
		return nil, fmt.Errorf("разбор правила: %w", err)
	}
	if opt.Dtstart.IsZero() {
		opt.Dtstart = start.UTC().Truncate(time.Second)
	}

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("построение правила: %w", err)
	}

	next := r.After(after.UTC(), false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// validateRule принимается только на создании/редактировании шаблона:
// правило обязано парситься и иметь хотя бы одно срабатывание в будущем
func (e *RecurrenceEngine) validateRule(rule string, now time.Time) error {
	if strings.TrimSpace(rule) == "" {
		return NewInvalidRule(rule, "пустое правило")
	}

	next, err := NextOccurrence(rule, now, now)
	if err != nil {
		return NewInvalidRule(rule, err.Error())
	}
	if next == nil {
		return NewInvalidRule(rule, "правило не даёт ни одного срабатывания")
	}
	return nil
}

func (e *RecurrenceEngine) CreateTemplate(ctx context.Context, ownerID uuid.UUID, title, description string, priority task.Priority, estimateMinutes *int, rule string) (*template.Template, error) {
	now := e.clock.Now()
	if err := e.validateRule(rule, now); err != nil {
		return nil, err
	}

	if priority == "" {
		priority = task.PriorityMedium
	}

	next, _ := NextOccurrence(rule, now, now)
	tpl := &template.Template{
		UUID:            uuid.New(),
		OwnerID:         ownerID,
		Title:           title,
		Description:     description,
		Priority:        priority,
		EstimateMinutes: estimateMinutes,
		Rule:            rule,
		Active:          true,
		NextDue:         next,
		CreatedAt:       now,
	}

	if err := e.templates.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("создание шаблона: %w", err)
	}

	// первый экземпляр ставим сразу, дальше генерация идёт по завершениям
	if _, err := e.spawnInstance(ctx, tpl, next); err != nil {
		logger.Warn("Service: Не удалось создать первый экземпляр шаблона",
			zap.String("template_id", tpl.UUID.String()), zap.Error(err))
	}

	return tpl, nil
}

// UpdateTemplate меняет только будущее: уже созданные экземпляры - независимые
// строки, обратной записи в них нет
func (e *RecurrenceEngine) UpdateTemplate(ctx context.Context, id, ownerID uuid.UUID, title, description *string, rule *string, active *bool) (*template.Template, error) {
	tpl, err := e.getOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	if rule != nil {
		if err := e.validateRule(*rule, now); err != nil {
			return nil, err
		}
		tpl.Rule = *rule
		tpl.NextDue, _ = NextOccurrence(*rule, tpl.CreatedAt, now)
	}
	if title != nil {
		tpl.Title = *title
	}
	if description != nil {
		tpl.Description = *description
	}
	if active != nil {
		tpl.Active = *active
	}
	tpl.UpdatedAt = &now

	if err := e.templates.Update(ctx, tpl); err != nil {
		return nil, fmt.Errorf("обновление шаблона: %w", err)
	}
	return tpl, nil
}

// PauseTemplate останавливает генерацию, существующие экземпляры не трогает
func (e *RecurrenceEngine) PauseTemplate(ctx context.Context, id, ownerID uuid.UUID) (*template.Template, error) {
	paused := false
	return e.UpdateTemplate(ctx, id, ownerID, nil, nil, nil, &paused)
}

func (e *RecurrenceEngine) GetTemplates(ctx context.Context, ownerID uuid.UUID) ([]*template.Template, error) {
	tpls, err := e.templates.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение шаблонов: %w", err)
	}
	return tpls, nil
}

// OnInstanceCompleted вызывается оркестратором после успешной записи
// завершения. Якорь следующего срабатывания - время завершения, а не
// исходный дедлайн: завершённый досрочно экземпляр даёт следующий слот
// правила после завершения, а не дубликат пропущенного.
func (e *RecurrenceEngine) OnInstanceCompleted(ctx context.Context, instance *task.Task, completedAt time.Time) (*task.Task, error) {
	if instance.TemplateID == nil {
		return nil, nil
	}

	tpl, err := e.templates.GetByID(ctx, *instance.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// шаблон удалён - экземпляр доживает сам по себе
			return nil, nil
		}
		return nil, fmt.Errorf("получение шаблона: %w", err)
	}

	if !tpl.Active {
		return nil, nil
	}

	next, err := NextOccurrence(tpl.Rule, tpl.CreatedAt, completedAt)
	if err != nil {
		// правило валидировалось на записи, сюда попадать не должно
		logger.Error("Service: Невалидное правило в активном шаблоне", err,
			zap.String("template_id", tpl.UUID.String()))
		return nil, nil
	}
	if next == nil {
		return nil, nil
	}

	return e.spawnInstance(ctx, tpl, next)
}

func (e *RecurrenceEngine) spawnInstance(ctx context.Context, tpl *template.Template, due *time.Time) (*task.Task, error) {
	if due == nil {
		return nil, nil
	}

	now := e.clock.Now()
	tplID := tpl.UUID
	instance := &task.Task{
		UUID:            uuid.New(),
		OwnerID:         tpl.OwnerID,
		Title:           tpl.Title,
		Description:     tpl.Description,
		Priority:        tpl.Priority,
		EstimateMinutes: tpl.EstimateMinutes,
		DueTime:         due,
		TemplateID:      &tplID,
		Version:         1,
		CreatedAt:       now,
	}

	if err := e.tasks.Create(ctx, instance); err != nil {
		return nil, fmt.Errorf("создание экземпляра: %w", err)
	}

	// кэш next_due - справочный, расхождение не критично
	tpl.NextDue = due
	tpl.UpdatedAt = &now
	if err := e.templates.Update(ctx, tpl); err != nil {
		logger.Warn("Service: Не удалось обновить next_due шаблона",
			zap.String("template_id", tpl.UUID.String()), zap.Error(err))
	}

	logger.Info("Service: Создан экземпляр регулярной задачи",
		zap.String("template_id", tpl.UUID.String()),
		zap.String("task_id", instance.UUID.String()),
		zap.Time("due", *due),
	)
	return instance, nil
}

func (e *RecurrenceEngine) getOwned(ctx context.Context, id, ownerID uuid.UUID) (*template.Template, error) {
	tpl, err := e.templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("шаблон", id.String())
		}
		return nil, fmt.Errorf("получение шаблона: %w", err)
	}
	if tpl.OwnerID != ownerID {
		return nil, NewForbidden("шаблон", id.String())
	}
	return tpl, nil
}
