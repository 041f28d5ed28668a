// Package notify delivers rental-ending reminders and remembers which ones
// were already sent.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/models"
	"github.com/segmentio/kafka-go"
)

// Notifier sends one reminder.
type Notifier interface {
	SendReminder(ctx context.Context, t models.ReminderTarget) error
}

// Reminder is the message published for a rental about to end.
type Reminder struct {
	RentalID      string    `json:"rentalId"`
	CustomerEmail string    `json:"customerEmail"`
	CustomerName  string    `json:"customerName"`
	VehicleTitle  string    `json:"vehicleTitle"`
	EndDate       time.Time `json:"endDate"`
}

func reminderFrom(t models.ReminderTarget) Reminder {
	return Reminder{
		RentalID:      t.RentalID,
		CustomerEmail: t.CustomerEmail,
		CustomerName:  t.CustomerName,
		VehicleTitle:  t.VehicleTitle,
		EndDate:       t.EndDate,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes reminders as JSON, keyed by rental id.
type KafkaNotifier struct {
	w messageWriter
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (n *KafkaNotifier) SendReminder(ctx context.Context, t models.ReminderTarget) error {
	body, err := json.Marshal(reminderFrom(t))
	if err != nil {
		return fmt.Errorf("error encoding reminder: %w", err)
	}
	err = n.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.RentalID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("rental.reminder")},
		},
	})
	if err != nil {
		return fmt.Errorf("error publishing reminder: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.w.Close()
}

// LogNotifier only logs reminders. Used when no brokers are configured.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("module", "notify")}
}

func (n *LogNotifier) SendReminder(ctx context.Context, t models.ReminderTarget) error {
	n.log.Info(ctx, "rental ends soon",
		"rental_id", t.RentalID,
		"email", t.CustomerEmail,
		"vehicle", t.VehicleTitle,
		"end_date", t.EndDate.Format(time.RFC3339))
	return nil
}
