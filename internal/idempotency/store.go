// Package idempotency replays charge results for repeated client idempotency keys.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/teresa-solution/tenant-payment-service/internal/crypto"
	"github.com/teresa-solution/tenant-payment-service/internal/payment"
)

// ErrKeyReused is returned when a key is presented again with a different amount or currency.
var ErrKeyReused error = &payment.Error{
	Kind:    payment.KindConflict,
	Message: "idempotency key was already used for a different charge",
}

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

type record struct {
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	PaymentIntentID string       `json:"payment_intent_id"`
	SealedSecret    []byte       `json:"sealed_secret"`
	Connected       bool         `json:"connected"`
	Mode            payment.Mode `json:"mode"`
	ApplicationFee  int64        `json:"application_fee"`
}

// Store keeps charge results in redis for ttl. Client secrets are sealed before they
// leave the process.
type Store struct {
	redis  RedisClient
	sealer *crypto.Sealer
	ttl    time.Duration
}

func NewStore(rdb RedisClient, sealer *crypto.Sealer, ttl time.Duration) *Store {
	return &Store{redis: rdb, sealer: sealer, ttl: ttl}
}

func chargeKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("idempotency:charge:%s:%s", tenantID.String(), key)
}

// Lookup returns the stored result for (tenantID, key), or nil when there is none.
func (s *Store) Lookup(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	cached, err := s.redis.Get(ctx, chargeKey(req.TenantID, req.IdempotencyKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency record: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(cached), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	if rec.Amount != req.Amount || rec.Currency != req.Currency {
		return nil, ErrKeyReused
	}
	secret, err := s.sealer.Open(rec.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to open idempotency record: %w", err)
	}

	return &payment.ChargeResult{
		PaymentIntentID: rec.PaymentIntentID,
		ClientSecret:    secret,
		Connected:       rec.Connected,
		Mode:            rec.Mode,
		ApplicationFee:  rec.ApplicationFee,
	}, nil
}

// Save stores res under (tenantID, key).
func (s *Store) Save(ctx context.Context, req payment.ChargeRequest, res *payment.ChargeResult) error {
	sealed, err := s.sealer.Seal(res.ClientSecret)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record{
		Amount:          req.Amount,
		Currency:        req.Currency,
		PaymentIntentID: res.PaymentIntentID,
		SealedSecret:    sealed,
		Connected:       res.Connected,
		Mode:            res.Mode,
		ApplicationFee:  res.ApplicationFee,
	})
	if err != nil {
		return err
	}
	if err := s.redis.SetEx(ctx, chargeKey(req.TenantID, req.IdempotencyKey), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency record: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.redis.Close()
}
