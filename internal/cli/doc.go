// Package cli содержит команды консольного клиента.
//
// Структура:
//   - client.go   — HTTP-клиент для API
//   - output.go   — форматирование вывода (таблица/JSON)
//   - run.go      — команды управления прогоном
//   - session.go  — команды работы с сессиями
//   - download.go — команда постановки скачиваний
//
// CLI разговаривает только с API: команд в очередь напрямую не шлёт.
package cli
