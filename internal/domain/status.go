package domain

// RunStatus — статус выполнения генерационного прогона.
//
// Жизненный цикл:
//
//	IDLE → RUNNING → COMPLETED
//	              ⇄ PAUSED
//	RUNNING|PAUSED → STOPPED (по команде оператора)
//
// Повторный запуск из RUNNING перезапускает прогон с нулевого индекса.
type RunStatus string

const (
	// RunStatusIdle — прогон не запущен.
	RunStatusIdle RunStatus = "IDLE"

	// RunStatusRunning — прогон в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusPaused — прогон приостановлен оператором.
	RunStatusPaused RunStatus = "PAUSED"

	// RunStatusStopped — прогон остановлен оператором до завершения.
	RunStatusStopped RunStatus = "STOPPED"

	// RunStatusCompleted — все элементы обработаны.
	RunStatusCompleted RunStatus = "COMPLETED"
)

// IsTerminal возвращает true, если статус финальный (прогон завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusStopped, RunStatusCompleted:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если прогон выполняется или приостановлен.
func (s RunStatus) IsActive() bool {
	return s == RunStatusRunning || s == RunStatusPaused
}

// Severity — уровень важности лог-события, видимого оператору.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)
