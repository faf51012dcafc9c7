package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// FlagStore holds short-lived presence flags: the deviation debounce flag
// per trip and the reservation hold marker per booking. Flags may be lost
// on store restart; every consumer revalidates against the ledger, so a
// lost flag costs at worst one duplicate alert.
type FlagStore interface {
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// DeviationFlagKey marks "alert already sent for the current deviation
// episode" for a trip.
func DeviationFlagKey(tripID uint) string {
	return fmt.Sprintf("deviation:trip:%d", tripID)
}

// HoldKey marks an active reservation hold for a booking.
func HoldKey(bookingID uint) string {
	return fmt.Sprintf("booking:hold:%d", bookingID)
}

// RedisFlagStore is the production FlagStore.
type RedisFlagStore struct {
	Client *redis.Client
}

func NewRedisFlagStore(client *redis.Client) *RedisFlagStore {
	return &RedisFlagStore{Client: client}
}

func (s *RedisFlagStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisFlagStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisFlagStore) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// MemoryFlagStore is an in-process FlagStore with TTL support, used in
// tests and as a single-instance fallback.
type MemoryFlagStore struct {
	mu    sync.Mutex
	flags map[string]time.Time // zero time means no expiry
}

func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{flags: make(map[string]time.Time)}
}

func (s *MemoryFlagStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	s.flags[key] = deadline
	return nil
}

func (s *MemoryFlagStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.flags[key]
	if !ok {
		return false, nil
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		delete(s.flags, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryFlagStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, key)
	return nil
}

// SetBusPosition caches the latest reported position for a bus.
func SetBusPosition(ctx context.Context, busID uint, lat, lng float64) error {
	positionData := map[string]interface{}{
		"lat":     lat,
		"lng":     lng,
		"updated": time.Now().Unix(),
	}

	data, err := json.Marshal(positionData)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("bus:position:%d", busID)
	return RedisClient.Set(ctx, key, data, time.Hour).Err()
}

// GetBusPosition retrieves the cached position for a bus.
func GetBusPosition(ctx context.Context, busID uint) (lat, lng float64, err error) {
	key := fmt.Sprintf("bus:position:%d", busID)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}

	var positionData map[string]interface{}
	if err := json.Unmarshal([]byte(data), &positionData); err != nil {
		return 0, 0, err
	}

	lat, _ = positionData["lat"].(float64)
	lng, _ = positionData["lng"].(float64)

	return lat, lng, nil
}

// PublishBusPosition mirrors a position report onto Redis pub/sub for
// consumers outside this process.
func PublishBusPosition(ctx context.Context, busID uint, lat, lng float64) error {
	positionData := map[string]interface{}{
		"busId": busID,
		"position": map[string]float64{
			"lat": lat,
			"lng": lng,
		},
		"timestamp": time.Now().Unix(),
	}

	data, err := json.Marshal(positionData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "bus:position:updates", data).Err()
}
