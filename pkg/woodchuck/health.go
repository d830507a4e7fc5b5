package woodchuck

import (
	"context"
	"fmt"
	"log/slog"
)

const healthLogPrefix = "woodchuck:health"

// Health reports whether the service can reach its database.
func (s *Service) Health(ctx context.Context) (*HealthOutput, error) {
	dbOK := false
	if s.repo != nil {
		if err := s.repo.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database ping failed: %v", healthLogPrefix, err))
		} else {
			dbOK = true
		}
	}
	status := "healthy"
	if !dbOK {
		status = "unhealthy"
	}
	return &HealthOutput{
		Status:    status,
		Checks:    HealthChecks{Database: dbOK},
		Timestamp: s.timestamp(),
	}, nil
}
