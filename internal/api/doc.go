// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (репозиторий, publisher, state, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - state.go            — отражение состояния прогона из потока событий
//   - run_handler.go      — обработчики для /runs
//   - session_handler.go  — обработчики для /sessions
//   - download_handler.go — обработчики для /downloads
//
// API — управляющая поверхность: команды уходят агенту и загрузчику
// через очередь, состояние прогона собирается из событий. Сам API
// не выполняет ни генерацию, ни скачивание.
package api
