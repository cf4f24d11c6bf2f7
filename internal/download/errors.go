package download

import "errors"

// Ошибки очереди скачивания.
var (
	// ErrQueueActive — очередь уже дренируется; новая постановка
	// отклонена целиком.
	ErrQueueActive = errors.New("download queue is active")

	// ErrNoTasks — постановка без единого артефакта.
	ErrNoTasks = errors.New("no download tasks")
)
