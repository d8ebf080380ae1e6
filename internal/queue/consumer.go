package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dquispe/cineticket/internal/logger"
)

// StartTicketConsumer connects to RabbitMQ, declares the durable
// ticket.confirmed queue and consumes it, appending one human-readable line
// per event to logs/ticket.log. It runs a reconnect loop with exponential
// backoff and never returns in normal operation; processing failures are
// logged and the message rejected without requeue to avoid tight loops.
func StartTicketConsumer() error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(amqpURL())
		if err != nil {
			logger.Warn("ticket-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			logger.Warn("ticket-consumer: consume loop ended", zap.Error(err))
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("ticket-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ticketQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ticketQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			logger.Error("ticket-consumer: handle message failed", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev TicketConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "ticket.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Ticket confirmed | ticket_id=%d | user_id=%d | movie=%s | showtime=%s | cinema=%s | total=%d cents | seats=[%s]\n",
		ev.ConfirmedAt, ev.TicketID, ev.UserID, ev.MovieID, ev.ShowtimeID, ev.CinemaID,
		ev.TotalAmountCents, strings.Join(ev.Seats, ","))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
