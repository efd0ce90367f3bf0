package repository

import "errors"

// общие ошибки хранилищ; сервисный слой переводит их в бизнес-ошибки
var ErrNotFound = errors.New("запись не найдена")
var ErrVersionConflict = errors.New("конфликт версий")
var ErrAlreadyFired = errors.New("напоминание уже сработало")
var ErrAlreadyExists = errors.New("запись уже существует")
