package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"

	"circles_go/internal/hub"
	"circles_go/internal/tags"
)

type Config struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

type publishFunc func(ctx context.Context, p *paho.Publish) error

// Publisher mirrors hub events to an MQTT broker: snapshots on
// <prefix>/tags, errors on <prefix>/errors and a retained online/offline
// flag on <prefix>/availability.
type Publisher struct {
	cfg     Config
	hub     *hub.Hub
	log     zerolog.Logger
	cm      *autopaho.ConnectionManager
	publish publishFunc
}

func New(cfg Config, h *hub.Hub, logger zerolog.Logger) *Publisher {
	cfg.TopicPrefix = strings.Trim(cfg.TopicPrefix, "/")
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "circles"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "circles-reader"
	}
	return &Publisher{
		cfg: cfg,
		hub: h,
		log: logger.With().Str("component", "mqtt").Logger(),
	}
}

// Start connects and forwards hub events until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.log.Info().Str("broker", p.cfg.Broker).Msg("mqtt connected")
			p.publishAvailability(ctx, viaManager(cm), "online")
		},
		OnConnectError: func(err error) {
			p.log.Warn().Err(err).Msg("mqtt connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	p.publish = viaManager(cm)

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.log.Warn().Err(err).Msg("mqtt initial connection timed out, retrying in background")
	}

	events := p.hub.Subscribe(hub.DefaultBuffer)
	defer p.hub.Unsubscribe(events)
	p.forward(ctx, events)
	return nil
}

// Stop publishes offline and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.publish, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) forward(ctx context.Context, events <-chan hub.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg, err := p.message(ev)
			if err != nil {
				p.log.Warn().Err(err).Str("event", ev.Name).Msg("mqtt encode failed")
				continue
			}
			if err := p.publish(ctx, msg); err != nil {
				p.log.Debug().Err(err).Str("topic", msg.Topic).Msg("mqtt publish failed")
			}
		}
	}
}

type tagsPayload struct {
	When      time.Time  `json:"when"`
	SessionID string     `json:"session_id,omitempty"`
	Tags      []tags.Tag `json:"tags"`
}

// message maps a hub event to its topic and JSON payload. Snapshots are
// sent as a list ordered strongest first.
func (p *Publisher) message(ev hub.Event) (*paho.Publish, error) {
	var (
		topic string
		body  any
	)
	switch {
	case ev.Snapshot != nil:
		topic = p.tagsTopic()
		body = tagsPayload{When: ev.Snapshot.When, SessionID: ev.Snapshot.SessionID, Tags: ev.Snapshot.Tags.Sorted()}
	case ev.Error != nil:
		topic = p.errorsTopic()
		body = ev.Error
	default:
		return nil, fmt.Errorf("empty event %q", ev.Name)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &paho.Publish{Topic: topic, Payload: payload, QoS: 0}, nil
}

func viaManager(cm *autopaho.ConnectionManager) publishFunc {
	return func(ctx context.Context, msg *paho.Publish) error {
		_, err := cm.Publish(ctx, msg)
		return err
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, publish publishFunc, status string) {
	err := publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("status", status).Msg("mqtt availability publish failed")
	}
}

func (p *Publisher) tagsTopic() string         { return p.cfg.TopicPrefix + "/tags" }
func (p *Publisher) errorsTopic() string       { return p.cfg.TopicPrefix + "/errors" }
func (p *Publisher) availabilityTopic() string { return p.cfg.TopicPrefix + "/availability" }
