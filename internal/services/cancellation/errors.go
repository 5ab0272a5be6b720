package cancellation

import (
	"errors"
	"fmt"
)

// Виды ошибок сервиса. HTTP-слой классифицирует их через errors.Is.
var (
	// ErrValidation - некорректный ввод, повтор без исправления бессмысленен.
	ErrValidation = errors.New("validation error")
	// ErrNotFound - подписка или попытка не найдены.
	ErrNotFound = errors.New("not found")
	// ErrForbidden - подписка или попытка принадлежат другому пользователю.
	ErrForbidden = errors.New("forbidden")
	// ErrStorage - сбой хранилища, запрос можно повторить с теми же данными.
	ErrStorage = errors.New("storage error")
)

// CompleteError сообщает о частичном сбое финализации.
// При AnswersSaved ответы уже записаны и нужно повторить Complete, а не начинать поток заново.
type CompleteError struct {
	AnswersSaved bool
	Err          error
}

func (e *CompleteError) Error() string {
	if e.AnswersSaved {
		return "answers saved, subscription status not updated: " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *CompleteError) Unwrap() error {
	return e.Err
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
