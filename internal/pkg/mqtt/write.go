package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/realtime"
)

// Set publishes value as a retained message so the broker keeps the last
// write for late subscribers.
func (s *service) Set(ctx context.Context, path string, value any) error {
	if realtime.IsServerTimestamp(value) {
		value = time.Now().UnixMilli()
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	topic := s.topic(path)
	token := s.client.Publish(topic, qos, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	s.logger.Debug("published", zap.String("topic", topic), zap.ByteString("payload", payload))
	return nil
}

func (s *service) onMessage(path string, msg paho_mqtt.Message) {
	payload := msg.Payload()
	if len(payload) == 0 {
		s.hub.Publish(realtime.Update{Path: path})
		return
	}
	if !json.Valid(payload) {
		s.logger.Warn("dropping malformed payload", zap.String("topic", msg.Topic()), zap.ByteString("payload", payload))
		s.hub.Publish(realtime.Update{Path: path, Err: fmt.Errorf("%w: malformed payload on %s", realtime.ErrSubscription, msg.Topic())})
		return
	}
	s.hub.Publish(realtime.Update{Path: path, Value: append(json.RawMessage(nil), payload...)})
}
