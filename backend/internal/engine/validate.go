package engine

import (
	"fmt"
	"math"
	"strings"

	"tami-graph/backend/internal/constants"
	apperrors "tami-graph/backend/pkg/errors"
)

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperrors.NewValidation("owner_id", "is required")
	}
	return nil
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidation(field, "is required")
	}
	return nil
}

func checkUnit(field string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || *v < 0 || *v > 1) {
		return apperrors.NewValidation(field, fmt.Sprintf("must be within [0,1], got %v", *v))
	}
	return nil
}

func checkSentiment(field string, v *float64) error {
	if v != nil && (math.IsNaN(*v) || *v < -1 || *v > 1) {
		return apperrors.NewValidation(field, fmt.Sprintf("must be within [-1,1], got %v", *v))
	}
	return nil
}

// page applies the default page size and rejects out-of-range bounds
func page(offset, limit int) (int, int, error) {
	if offset < 0 {
		return 0, 0, apperrors.NewValidation("offset", "must not be negative")
	}
	if limit == 0 {
		limit = constants.DefaultPageSize
	}
	if limit < 0 || limit > constants.MaxPageSize {
		return 0, 0, apperrors.NewValidation("limit", fmt.Sprintf("must be within [1,%d]", constants.MaxPageSize))
	}
	return offset, limit, nil
}

// bounded applies def when v is zero and rejects values outside [1, max]
func bounded(field string, v, def, max int) (int, error) {
	if v == 0 {
		return def, nil
	}
	if v < 1 || v > max {
		return 0, apperrors.NewValidation(field, fmt.Sprintf("must be within [1,%d], got %d", max, v))
	}
	return v, nil
}
