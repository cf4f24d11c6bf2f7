// Package scheduler запускает сохранённые сессии по расписанию.
//
// Каждая запись расписания — cron-выражение и идентификатор сессии.
// В момент срабатывания сессия загружается из хранилища и агенту
// отправляется команда запуска. Если агент в этот момент занят,
// прогон перезапустится — это штатная семантика команды запуска.
package scheduler
