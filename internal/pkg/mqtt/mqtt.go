package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

const (
	qos            = byte(1)
	connectTimeout = 5 * time.Second
)

var errConnectTimeout = errors.New("unable to connect in time")

type service struct {
	client paho_mqtt.Client
	hub    *realtime.Hub
	prefix string
	logger *zap.Logger
}

// New wraps an MQTT client as a realtime store. Paths are published under
// prefix, so "products/count" becomes "<prefix>/products/count".
func New(client paho_mqtt.Client, prefix string) *service {
	s := &service{
		client: client,
		hub:    realtime.NewHub(),
		prefix: prefix,
		logger: zap.L(),
	}
	s.hub.OnFirst = s.subscribe
	s.hub.OnLast = s.unsubscribe
	return s
}

// Open connects to the broker named in cfg.
func Open(_ context.Context, cfg *config.BackendConfig) (realtime.Store, error) {
	if err := config.Require("MQTT_HOST", cfg.MqttHost); err != nil {
		return nil, err
	}

	var s *service
	opts := paho_mqtt.NewClientOptions().
		AddBroker(cfg.MqttHost).
		SetClientID(cfg.MqttClient).
		SetUsername(cfg.MqttUser).
		SetPassword(cfg.MqttPass).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho_mqtt.Client, err error) {
			s.onConnectionLost(err)
		}).
		SetOnConnectHandler(func(paho_mqtt.Client) {
			s.onReconnect()
		})

	s = New(paho_mqtt.NewClient(opts), slug.Make(cfg.ProjectID))
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errConnectTimeout
	}
	return token.Error()
}

func (s *service) topic(path string) string {
	return s.prefix + "/" + path
}

func (s *service) Subscribe(_ context.Context, path string) (realtime.Subscription, error) {
	return s.hub.Subscribe(path)
}

func (s *service) subscribe(path string) error {
	topic := s.topic(path)
	token := s.client.Subscribe(topic, qos, func(_ paho_mqtt.Client, msg paho_mqtt.Message) {
		s.onMessage(path, msg)
	})
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: subscribe %s timed out", realtime.ErrSubscription, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", realtime.ErrSubscription, err)
	}
	s.logger.Debug("subscribed", zap.String("topic", topic))
	return nil
}

func (s *service) unsubscribe(path string) {
	topic := s.topic(path)
	token := s.client.Unsubscribe(topic)
	if token.WaitTimeout(connectTimeout) && token.Error() != nil {
		s.logger.Warn("failed to unsubscribe", zap.String("topic", topic), zap.Error(token.Error()))
	}
}

func (s *service) onConnectionLost(err error) {
	s.logger.Error("mqtt connection lost", zap.Error(err))
	s.hub.Broadcast(fmt.Errorf("%w: %w", realtime.ErrSubscription, err))
}

// onReconnect restores broker subscriptions after the client reconnects
// with a clean session.
func (s *service) onReconnect() {
	for _, path := range s.hub.Paths() {
		if err := s.subscribe(path); err != nil {
			s.logger.Error("failed to resubscribe", zap.String("path", path), zap.Error(err))
			s.hub.Publish(realtime.Update{Path: path, Err: err})
		}
	}
}

func (s *service) Close() error {
	s.hub.Close()
	s.client.Disconnect(250)
	return nil
}
