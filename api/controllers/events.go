package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mesa-pos/mesa-backend/api/middleware"
	"github.com/mesa-pos/mesa-backend/api/responses"
	"github.com/mesa-pos/mesa-backend/api/validators"
	"github.com/mesa-pos/mesa-backend/internal/hub"
	pkgerrors "github.com/mesa-pos/mesa-backend/pkg/errors"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 200
)

// ListEvents returns the tenant's published events after a sequence number.
// Reconnecting displays call this to close the gap before resubscribing.
func ListEvents(resync *hub.Resync, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resync == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event resync unavailable"))
			return
		}

		tenantID := middleware.TenantIDFromContext(r.Context())
		if tenantID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant identity missing"))
			return
		}

		afterSeq := int64(0)
		if raw := strings.TrimSpace(r.URL.Query().Get("after_seq")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || value < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "after_seq must be a non-negative integer"))
				return
			}
			afterSeq = value
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultEventsLimit, 1, maxEventsLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := resync.EventsAfter(r.Context(), tenantID, afterSeq, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, events)
	}
}
