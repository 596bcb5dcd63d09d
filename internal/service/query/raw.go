package query

import (
	"context"
	"strings"

	"dynquery/internal/domain"
	"dynquery/internal/tenant"
)

// GetRawSQL runs caller-supplied SQL on a tenant. The user's connection
// record is cleared once the query succeeds.
func (s *Service) GetRawSQL(ctx context.Context, sqlText, tenantName, userID string) (*domain.ResultSet, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, domain.ErrValidation("sql is required")
	}
	rs, err := s.exec.Execute(ctx, tenant.Request{
		Tenant:         tenantName,
		UserID:         userID,
		SQL:            sqlText,
		ClearOnSuccess: true,
	})
	if err != nil {
		s.logger.Error("raw sql failed", "tenant", tenantName, "user_id", userID, "error", err)
		return nil, err
	}
	return rs, nil
}
