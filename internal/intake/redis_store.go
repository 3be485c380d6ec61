package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const sessionTTL = 24 * time.Hour

// RedisSessionStore keeps sessions in Redis so they survive an agent restart.
// Abandoned sessions expire after a day.
type RedisSessionStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, tracer trace.Tracer) *RedisSessionStore {
	if client == nil {
		panic("intake: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("teamsbot.internal.intake.sessions")
	}
	return &RedisSessionStore{redis: client, tracer: tracer}
}

func (s *RedisSessionStore) Get(ctx context.Context, userID int64) (*Session, bool, error) {
	ctx, span := s.tracer.Start(ctx, "intake.get_session", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("intake: failed to load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("intake: failed to decode session: %w", err)
	}
	return &session, true, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "intake.put_session", trace.WithAttributes(attribute.Int64("user_id", session.UserID)))
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.UserID), data, sessionTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	ctx, span := s.tracer.Start(ctx, "intake.delete_session", trace.WithAttributes(attribute.Int64("user_id", userID)))
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("intake: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("intake:session:%d", userID)
}
