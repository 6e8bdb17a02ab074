package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Login(db *gorm.DB, secret string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		var user models.User
		err := db.WithContext(c.Request.Context()).
			Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials", nil)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}

		if err := user.CheckPassword(input.Password); err != nil || !user.Active {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Invalid credentials", nil)
			return
		}

		token, err := utils.GenerateToken(&user, secret, ttl)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(200, gin.H{
			"token": token,
			"user":  userResponse(&user),
		})
	}
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":          user.ID,
		"provider_id": user.ProviderID,
		"email":       user.Email,
		"name":        user.Name,
		"title":       user.Title,
		"phone":       user.Phone,
		"role":        user.Role,
		"active":      user.Active,
	}
}
