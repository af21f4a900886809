package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"engine-health-monitor/internal/models"
)

// Latest reports are kept this long so dashboards can show a vehicle that
// stopped reporting.
const latestTTL = 24 * time.Hour

// alertsChannel receives every Critical or non-nominal report
const alertsChannel = "engine:alerts"

// RedisPublisher fans assembled reports out to Redis subscribers
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects and pings the server
func NewRedisPublisher(ctx context.Context, addr, password string, db int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// Close releases the Redis connection pool
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// ReportsChannel is the pub/sub channel for a vehicle's reports
func ReportsChannel(vehicleID string) string {
	if vehicleID == "" {
		vehicleID = "unassigned"
	}
	return fmt.Sprintf("engine:%s:reports", vehicleID)
}

// LatestKey holds the most recent report for a vehicle
func LatestKey(vehicleID string) string {
	if vehicleID == "" {
		vehicleID = "unassigned"
	}
	return fmt.Sprintf("engine:%s:latest", vehicleID)
}

// Publish stores the report as the vehicle's latest and broadcasts it
func (p *RedisPublisher) Publish(ctx context.Context, r models.HealthReport) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, LatestKey(r.VehicleID), payload, latestTTL)
	pipe.Publish(ctx, ReportsChannel(r.VehicleID), payload)
	if r.Classifier.PredictedLabel == models.LabelCritical || !r.Diagnostics.Nominal() {
		pipe.Publish(ctx, alertsChannel, payload)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
