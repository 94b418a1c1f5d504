package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/piezo-meteo-etl/internal/config"
	"github.com/couchcryptid/piezo-meteo-etl/internal/domain"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicPrefix    = "piezometres"
	latestRunTopic = topicPrefix + "/runs/latest"
	qos            = byte(1)
	publishTimeout = 5 * time.Second
)

var errStopped = errors.New("publisher stopped")

// Publisher publishes each sensor's station as a retained message and a
// summary of the latest run. It implements pipeline.Loader.
type Publisher struct {
	client    mqtt.Client
	broker    string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// StationMessage is the retained payload on a sensor's station topic.
type StationMessage struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Consistent  bool      `json:"consistent"`
	domain.Association
}

// RunMessage summarizes a run on the latest-run topic.
type RunMessage struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Sensors      int       `json:"sensors"`
	Stations     int       `json:"stations"`
	Associated   int       `json:"associated"`
	Unassociated int       `json:"unassociated"`
	Consistent   int       `json:"consistent"`
	Furthest     []string  `json:"furthest"`
}

// NewPublisher creates a publisher for cfg.MQTTBroker. It does not connect.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	p := &Publisher{
		broker: cfg.MQTTBroker,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial broker connection, honouring ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errStopped
	default:
	}
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// The OnConnect handler runs on its own goroutine and may lag
			// behind the token.
			p.setConnected(true)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return errStopped
		default:
		}
	}
}

// Load publishes one retained station message per association, then the run
// summary.
func (p *Publisher) Load(ctx context.Context, run domain.Run) error {
	if !p.IsConnected() {
		return errors.New("mqtt client not connected")
	}

	consistent := make(map[string]bool, len(run.Consistent))
	for _, a := range run.Consistent {
		consistent[a.Sensor.ID] = true
	}

	for _, a := range run.Associations {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := StationMessage{
			RunID:       run.ID,
			GeneratedAt: run.GeneratedAt,
			Consistent:  consistent[a.Sensor.ID],
			Association: a,
		}
		if err := p.publish(SensorTopic(a.Sensor.ID), msg); err != nil {
			return err
		}
	}

	if err := p.publish(latestRunTopic, NewRunMessage(run)); err != nil {
		return err
	}
	p.logger.Debug("run published", "run_id", run.ID, "associations", len(run.Associations))
	return nil
}

func (p *Publisher) publish(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	token := p.client.Publish(topic, qos, true, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		p.logger.Error("mqtt publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// SensorTopic is the retained topic carrying a sensor's associated station.
// Characters with a meaning in topic names are replaced so every sensor maps
// to exactly one level.
func SensorTopic(sensorID string) string {
	return topicPrefix + "/" + topicSafe.Replace(sensorID) + "/station"
}

var topicSafe = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// NewRunMessage summarizes run.
func NewRunMessage(run domain.Run) RunMessage {
	furthest := make([]string, len(run.Furthest))
	for i, a := range run.Furthest {
		furthest[i] = a.Sensor.ID
	}
	return RunMessage{
		RunID:        run.ID,
		GeneratedAt:  run.GeneratedAt,
		Sensors:      run.SensorCount,
		Stations:     run.StationCount,
		Associated:   len(run.Associations),
		Unassociated: len(run.Unassociated),
		Consistent:   len(run.Consistent),
		Furthest:     furthest,
	}
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect stops the publisher. Safe to call more than once.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt disconnected", "broker", p.broker)
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
