package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ec-storefront/internal/domain/model"
)

// RedisCartStore keeps each cart as two hashes: product id to quantity, and
// product id to the time the line was first added.
type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client}
}

var _ CartStore = (*RedisCartStore)(nil)

func cartItemsKey(userID string) string {
	return fmt.Sprintf("cart:%s:items", userID)
}

func cartAddedKey(userID string) string {
	return fmt.Sprintf("cart:%s:added", userID)
}

func (r *RedisCartStore) CartLines(ctx context.Context, userID string) ([]model.CartLine, error) {
	var items, added *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		items = pipe.HGetAll(ctx, cartItemsKey(userID))
		added = pipe.HGetAll(ctx, cartAddedKey(userID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}

	addedAt := added.Val()
	lines := make([]model.CartLine, 0, len(items.Val()))
	for productID, raw := range items.Val() {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad quantity for %s: %w", userID, productID, err)
		}
		line := model.CartLine{UserID: userID, ProductID: productID, Quantity: qty}
		if nanos, err := strconv.ParseInt(addedAt[productID], 10, 64); err == nil {
			line.AddedAt = time.Unix(0, nanos).UTC()
		}
		lines = append(lines, line)
	}
	sortCartLines(lines)
	return lines, nil
}

func (r *RedisCartStore) PutCartLine(ctx context.Context, line model.CartLine) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cartItemsKey(line.UserID), line.ProductID, line.Quantity)
		pipe.HSetNX(ctx, cartAddedKey(line.UserID), line.ProductID, line.AddedAt.UnixNano())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to put cart line: %w", err)
	}
	return nil
}

func (r *RedisCartStore) DeleteCartLine(ctx context.Context, userID, productID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, cartItemsKey(userID), productID)
		pipe.HDel(ctx, cartAddedKey(userID), productID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return nil
}

func (r *RedisCartStore) ClearCart(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, cartItemsKey(userID), cartAddedKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
