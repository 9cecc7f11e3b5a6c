// Package sl содержит вспомогательные функции для работы с логгером slog.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// PartialFailure помечает запись лога о частично применённом переходе,
// который должна исправить сверка статусов.
func PartialFailure() slog.Attr {
	return slog.String("kind", "partial_failure")
}
