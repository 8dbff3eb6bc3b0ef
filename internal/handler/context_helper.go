package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kasukras-star/apotikme-api/internal/middleware"
	"github.com/kasukras-star/apotikme-api/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ActorHeader identifies the operator when authentication is disabled.
const ActorHeader = "X-Actor-ID"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID prefers the verified token subject and falls back to the actor header.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}

func parseStatuses(raw string) ([]models.ChangeRequestStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.ChangeRequestStatus, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, err := models.ParseChangeRequestStatus(part)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parsePagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func paginate[T any](items []T, page, size int) ([]T, *models.Pagination) {
	meta := &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}
