package service

import (
	"context"
	"fmt"
)

// Pinger is a dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService checks the health of Redis and PostgreSQL
type HealthService struct {
	redis    Pinger
	postgres Pinger
}

// NewHealthService creates a new health service
func NewHealthService(redis, postgres Pinger) *HealthService {
	return &HealthService{redis: redis, postgres: postgres}
}

// HealthCheck checks the health of both Redis and PostgreSQL
func (s *HealthService) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}

	if err := s.postgres.Ping(ctx); err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}

	return nil
}
