package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const routingKey = "notification.user"

// Event is the JSON body published for every notification.
type Event struct {
	UserID  string    `json:"userId"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes notifications to a RabbitMQ topic exchange so other
// services (mail, push) can deliver them. A closed channel is reopened once
// per failed publish.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	exchange string
	now      func() time.Time

	mu      sync.Mutex
	channel publisher
	reopen  func() (publisher, error)
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(amqpURL, exchange string) (*AMQPNotifier, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	n := &AMQPNotifier{conn: conn, exchange: exchange, now: time.Now}
	n.reopen = n.openChannel
	ch, err := n.openChannel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.channel = ch
	return n, nil
}

// openChannel opens a fresh channel and declares the exchange on it.
func (n *AMQPNotifier) openChannel() (publisher, error) {
	ch, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", n.exchange, err)
	}
	return ch, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, userID, message string) error {
	body, err := json.Marshal(Event{UserID: userID, Message: message, SentAt: n.now().UTC()})
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	if n.reopen == nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	// one-shot retry on a fresh channel
	ch, reopenErr := n.reopen()
	if reopenErr != nil {
		return fmt.Errorf("failed to publish notification: %w", errors.Join(err, reopenErr))
	}
	closeChannel(n.channel)
	n.channel = ch
	if err := n.channel.PublishWithContext(ctx, n.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func closeChannel(p publisher) {
	if ch, ok := p.(*amqp091.Channel); ok && ch != nil {
		ch.Close()
	}
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() {
	n.mu.Lock()
	closeChannel(n.channel)
	n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
	}
}
