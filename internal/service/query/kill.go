package query

import (
	"context"
	"strconv"
	"strings"

	"dynquery/internal/domain"
)

// KillQuery kills connection connID on a tenant and clears the user's
// connection record whether or not the kill succeeded.
func (s *Service) KillQuery(ctx context.Context, connID, tenantName, userID string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(connID), 10, 64)
	if err != nil {
		return domain.ErrValidation("invalid connection id %q", connID)
	}

	killErr := s.exec.Kill(ctx, tenantName, id)
	if err := s.exec.Registry().Clear(ctx, userID); err != nil {
		s.logger.Warn("clear connection id failed", "user_id", userID, "error", err)
	}
	if killErr != nil {
		s.logger.Error("kill query failed", "connection_id", id, "tenant", tenantName, "user_id", userID, "error", killErr)
		return killErr
	}
	s.logger.Info("query killed", "connection_id", id, "tenant", tenantName, "user_id", userID)
	return nil
}

// ActiveConnection returns the connection id recorded for a user.
func (s *Service) ActiveConnection(ctx context.Context, userID string) (*domain.ConnectionRecord, error) {
	return s.exec.Registry().Get(ctx, userID)
}
