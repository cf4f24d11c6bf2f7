// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация команд и событий
//   - consumer.go   — потребление сообщений из очередей
//
// Контексты исполнения (api, agent, downloader) не разделяют память
// и общаются только через сообщения.
//
// Команды (direct exchange, durable очереди):
//   - run.start / run.pause / run.resume / run.stop — управление прогоном
//   - downloads.enqueue — постановка пакета скачиваний
//
// События (fanout exchange, эфемерные очереди слушателей):
//   - progress / log / error — ход прогона
//   - download.progress / download.complete — ход очереди скачивания
//   - generation.complete — финальный список артефактов
//
// Доставка событий — best-effort: если слушатель не подключён,
// событие теряется, и это не ошибка отправителя.
package mq
