package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const eventQueueName = "booking.events"

// StartConsumer connects to RabbitMQ, declares the durable
// booking.events queue, and consumes event envelopes.  Each event is
// appended to logs/booking.log in a single-line, human-friendly format.
// The function runs a reconnect loop with backoff and keeps running
// across broker restarts; malformed messages are rejected without
// requeue so a poison message cannot wedge the consumer.
func StartConsumer(url string) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
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
		log.Printf("event-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(eventQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(eventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			log.Printf("event-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	line, err := formatEvent(env)
	if err != nil {
		return err
	}
	return appendLog(line)
}

func formatEvent(env Envelope) (string, error) {
	switch env.Type {
	case TypeBookingCreated:
		var ev BookingCreatedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		group := ""
		if ev.BookingGroupID != nil {
			group = fmt.Sprintf(" | group=%s", *ev.BookingGroupID)
		}
		return fmt.Sprintf("[%s] Booking created | booking_id=%d | tenant_id=%d | slot_id=%d | customer_id=%d | visitors=%d | covered=%d | total=%d cents%s\n",
			ev.CreatedAt, ev.BookingID, ev.TenantID, ev.SlotID, ev.CustomerID, ev.VisitorCount, ev.PackageCovered, ev.PriceCents, group), nil
	case TypeBookingCancelled:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Booking cancelled | booking_id=%d | tenant_id=%d | slot_id=%d | visitors=%d | credit_restored=%d\n",
			ev.CancelledAt, ev.BookingID, ev.TenantID, ev.SlotID, ev.VisitorCount, ev.CreditRestored), nil
	case TypeBookingRescheduled:
		var ev BookingRescheduledEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Booking rescheduled | booking_id=%d | tenant_id=%d | slot %d -> %d | price %d -> %d cents | price_changed=%t\n",
			ev.RescheduledAt, ev.BookingID, ev.TenantID, ev.OldSlotID, ev.NewSlotID, ev.OldPriceCents, ev.NewPriceCents, ev.PriceChanged), nil
	case TypePackageExhausted:
		var ev PackageExhaustedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Package exhausted | tenant_id=%d | subscription_id=%d | service_id=%d | customer_id=%d\n",
			ev.ExhaustedAt, ev.TenantID, ev.SubscriptionID, ev.ServiceID, ev.CustomerID), nil
	}
	return "", fmt.Errorf("unknown event type %q", env.Type)
}

func appendLog(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "booking.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
