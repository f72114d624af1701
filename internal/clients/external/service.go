package external

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/downstream"
	"github.com/bytedance/sonic"
)

// UserPath is the external service route for user enrichment data
const UserPath = "/api/external/user/"

// Service fetches enrichment data for users
type Service struct {
	baseURL string
	calls   *downstream.Tracer
}

// NewService creates a service that calls baseURL through calls
func NewService(baseURL string, calls *downstream.Tracer) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		calls:   calls,
	}
}

// UserURL returns the enrichment URL for a user
func (s *Service) UserURL(userID int64) string {
	return s.baseURL + UserPath + strconv.FormatInt(userID, 10)
}

// GetUserData returns the external data for a user, or an empty map when
// the external service fails in any way.
func (s *Service) GetUserData(ctx context.Context, userID int64) map[string]any {
	var data map[string]any
	resp := s.calls.Do(ctx, downstream.Request{
		Service: ServiceName,
		Method:  http.MethodGet,
		URL:     s.UserURL(userID),
		Decode: func(body []byte) error {
			return sonic.Unmarshal(body, &data)
		},
	})
	if !resp.OK || data == nil {
		return map[string]any{}
	}
	return data
}
