package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeCommands — команды управления (direct).
	ExchangeCommands Exchange = "storyforge.commands"

	// ExchangeEvents — события прогона и скачивания (fanout, best-effort).
	ExchangeEvents Exchange = "storyforge.events"
)

// Queues — имена durable очередей команд.
const (
	// QueueAgentCommands — команды для workflow-агента.
	QueueAgentCommands Queue = "agent.commands"

	// QueueDownloaderCommands — команды для очереди скачивания.
	QueueDownloaderCommands Queue = "downloader.commands"
)

// Routing keys команд.
const (
	RoutingKeyRunStart         RoutingKey = "run.start"
	RoutingKeyRunPause         RoutingKey = "run.pause"
	RoutingKeyRunResume        RoutingKey = "run.resume"
	RoutingKeyRunStop          RoutingKey = "run.stop"
	RoutingKeyDownloadsEnqueue RoutingKey = "downloads.enqueue"
)

// SetupTopology объявляет обменники и очереди команд.
//
// Очереди событий не объявляются здесь: каждый слушатель создаёт
// собственную эфемерную очередь через DeclareEventQueue — если слушателя
// нет, события у fanout-обменника просто теряются.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareCommandQueues(ch); err != nil {
			return err
		}
		return bindCommandQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeCommands, "direct"},
		{ExchangeEvents, "fanout"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

// declareCommandQueues создаёт durable очереди команд.
func declareCommandQueues(ch *amqp.Channel) error {
	queues := []Queue{QueueAgentCommands, QueueDownloaderCommands}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			nil,       // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	return nil
}

// bindCommandQueues привязывает очереди команд к обменнику команд.
func bindCommandQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue Queue
		key   RoutingKey
	}{
		{QueueAgentCommands, RoutingKeyRunStart},
		{QueueAgentCommands, RoutingKeyRunPause},
		{QueueAgentCommands, RoutingKeyRunResume},
		{QueueAgentCommands, RoutingKeyRunStop},
		{QueueDownloaderCommands, RoutingKeyDownloadsEnqueue},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),          // queue name
			string(b.key),            // routing key
			string(ExchangeCommands), // exchange
			false,                    // no-wait
			nil,                      // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.key, err)
		}
	}
	return nil
}

// DeclareEventQueue создаёт эфемерную очередь слушателя событий
// и привязывает её к fanout-обменнику. Очередь эксклюзивна и
// удаляется вместе с соединением слушателя.
func DeclareEventQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name (auto-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare event queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", string(ExchangeEvents), false, nil); err != nil {
		return "", fmt.Errorf("bind event queue: %w", err)
	}
	return q.Name, nil
}
