package domain

import "time"

// WorkItem — один промпт в последовательности генерации.
//
// Элементы неизменяемы после старта прогона; изменить набор можно
// только полным перезапуском.
type WorkItem struct {
	// Index — порядковый номер в последовательности (с нуля).
	Index int `json:"index"`

	// Prompt — текст промпта.
	Prompt string `json:"prompt"`
}

// ReferenceAsset — референсное изображение персонажа.
//
// Прикрепляется к каждому шагу генерации. Содержимое непрозрачно
// для ядра — только байты и mime-тип.
type ReferenceAsset struct {
	// Data — декодированное содержимое файла.
	Data []byte `json:"data"`

	// Mime — mime-тип (например, image/png).
	Mime string `json:"mime"`
}

// IsEmpty возвращает true, если ассет не задан.
func (a ReferenceAsset) IsEmpty() bool {
	return len(a.Data) == 0
}

// Настройки по умолчанию.
const (
	DefaultTimeoutMs       = 120_000
	DefaultItemDelayMs     = 3_000
	DefaultMaxAttempts     = 3
	DefaultDownloadDelayMs = 1_500
)

// Settings — настройки прогона, передаваемые при старте.
//
// Все интервалы на проводе — миллисекунды (JSON), в коде — time.Duration
// через методы-аксессоры.
type Settings struct {
	// TimeoutMs — бюджет ожидания результата генерации одного шага.
	TimeoutMs int `json:"timeout_ms"`

	// ItemDelayMs — пауза между элементами последовательности.
	ItemDelayMs int `json:"item_delay_ms"`

	// MaxAttempts — бюджет попыток на один элемент.
	MaxAttempts int `json:"max_attempts"`

	// DownloadDelayMs — пауза между скачиваниями в очереди.
	DownloadDelayMs int `json:"download_delay_ms"`
}

// Normalize заменяет нулевые и отрицательные значения настройками по умолчанию.
func (s *Settings) Normalize() {
	if s.TimeoutMs <= 0 {
		s.TimeoutMs = DefaultTimeoutMs
	}
	if s.ItemDelayMs <= 0 {
		s.ItemDelayMs = DefaultItemDelayMs
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.DownloadDelayMs <= 0 {
		s.DownloadDelayMs = DefaultDownloadDelayMs
	}
}

// Timeout возвращает бюджет ожидания генерации.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// ItemDelay возвращает паузу между элементами.
func (s Settings) ItemDelay() time.Duration {
	return time.Duration(s.ItemDelayMs) * time.Millisecond
}

// DownloadDelay возвращает паузу между скачиваниями.
func (s Settings) DownloadDelay() time.Duration {
	return time.Duration(s.DownloadDelayMs) * time.Millisecond
}
