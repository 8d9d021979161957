package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigFastest

// RedisStream dopisuje zdarzenia do strumienia Redis (XADD). Konsumenci,
// np. usługa powiadomień e-mail, czytają go w grupach konsumentów.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream tworzy publikującego do strumienia
func NewRedisStream(client *redis.Client, stream string, maxLen int64) (*RedisStream, error) {
	if client == nil {
		return nil, errors.New("notify: klient redis jest wymagany")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = "digilib:events"
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStream{client: client, stream: stream, maxLen: maxLen}, nil
}

func (r *RedisStream) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: kodowanie zdarzenia: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    ev.Type,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("notify: zapis do strumienia %s: %w", r.stream, err)
	}
	return nil
}
