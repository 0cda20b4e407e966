package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/khaind/macad-api/internal/middleware"
	"github.com/khaind/macad-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}
