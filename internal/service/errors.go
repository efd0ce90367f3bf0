package service

import "fmt"

const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeIDConflict      = "ID_CONFLICT"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
	CodeInvalidRule     = "INVALID_RECURRENCE_RULE"
	CodeForbidden       = "FORBIDDEN"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

type Detail struct {
	Key     string
	Payload any
}

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource string, id string) *BusinessError {
	return NewBusinessError(CodeNotFound,
		fmt.Sprintf("%s %s не найден(а)", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

// NewVersionConflict несёт актуальную версию ресурса: вызывающая сторона
// сама решает, перечитывать или перезаписывать - ядро конфликт не разруливает
func NewVersionConflict(current any, expected, actual int) *BusinessError {
	return NewBusinessError(CodeVersionConflict,
		fmt.Sprintf("Версия устарела: ожидалась %d, в хранилище %d", expected, actual),
		ToDetail("current", current),
		ToDetail("expected_version", expected),
		ToDetail("actual_version", actual),
	)
}

func NewLimitExceeded(limit string, max int) *BusinessError {
	return NewBusinessError(CodeLimitExceeded,
		fmt.Sprintf("Достигнут лимит '%s' (%d)", limit, max),
		ToDetail("limit", limit),
		ToDetail("max", max),
	)
}

func NewInvalidRule(rule string, reason string) *BusinessError {
	return NewBusinessError(CodeInvalidRule,
		fmt.Sprintf("Правило повторения не принято: %s", reason),
		ToDetail("rule", rule),
		ToDetail("reason", reason),
	)
}

func NewIDConflict(id string) *BusinessError {
	return NewBusinessError(CodeIDConflict,
		fmt.Sprintf("Идентификатор %s уже занят живой задачей", id),
		ToDetail("id", id),
	)
}

func NewForbidden(resource, id string) *BusinessError {
	return NewBusinessError(CodeForbidden,
		fmt.Sprintf("%s %s принадлежит другому пользователю", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}
