package steps

import "errors"

// Ошибки шагов. Все они восстановимы повтором попытки.
var (
	// ErrAttachmentNotFound — поверхность для прикрепления файла так и
	// не появилась после перебора всех эвристик.
	ErrAttachmentNotFound = errors.New("attachment surface not found")

	// ErrAffordanceNotFound — ожидаемый элемент управления внешней
	// системы не появился в отведённое время.
	ErrAffordanceNotFound = errors.New("affordance not found")
)
