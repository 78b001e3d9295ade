package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aulalink/aulalink-api/internal/middleware"
	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

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

// currentUser rebuilds the acting user from the verified claims. Role
// checks downstream rely on the token contents, not a fresh DB read.
func currentUser(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return &models.User{
		ID:    claims.UserID,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
	}
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Validation(name, "must be a positive integer")
	}
	return id, nil
}

func pageParams(c *gin.Context, defaultSize int) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultSize)))
	return page, size
}
