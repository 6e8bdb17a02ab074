package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chachabrian/clearinghouse-backend/internal/middleware"
	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Title    string `json:"title"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"required,oneof=provider_admin scheduler dispatcher read_only"`
}

// CreateUser adds a user to the caller's provider. Only provider admins may
// do this.
func CreateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(middleware.RoleKey) != string(models.UserRoleProviderAdmin) {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Only provider admins can add users", nil)
			return
		}

		var input CreateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		user := models.User{
			ProviderID: c.GetUint(middleware.ProviderIDKey),
			Email:      strings.ToLower(strings.TrimSpace(input.Email)),
			Name:       input.Name,
			Title:      input.Title,
			Phone:      input.Phone,
			Password:   input.Password,
			Role:       models.UserRole(input.Role),
			Active:     true,
		}
		if err := user.HashPassword(); err != nil {
			respondError(c, err)
			return
		}

		if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				abortWith(c, http.StatusUnprocessableEntity, "validation_failed", "Validation failed",
					map[string]string{"email": "has already been taken"})
				return
			}
			respondError(c, err)
			return
		}

		c.JSON(201, userResponse(&user))
	}
}

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c, db)
		if !ok {
			return
		}
		c.JSON(200, userResponse(user))
	}
}

// UpdateProfile updates the user's profile information
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name  *string `json:"name"`
			Title *string `json:"title"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, ok := currentUser(c, db)
		if !ok {
			return
		}

		if input.Name != nil {
			user.Name = *input.Name
		}
		if input.Title != nil {
			user.Title = *input.Title
		}
		if input.Phone != nil {
			user.Phone = *input.Phone
		}

		if err := db.WithContext(c.Request.Context()).Save(user).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, userResponse(user))
	}
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func ChangePassword(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ChangePasswordInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err.Error())
			return
		}

		user, ok := currentUser(c, db)
		if !ok {
			return
		}
		if err := user.CheckPassword(input.CurrentPassword); err != nil {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "Current password is incorrect", nil)
			return
		}

		user.Password = input.NewPassword
		if err := user.HashPassword(); err != nil {
			respondError(c, err)
			return
		}
		if err := db.WithContext(c.Request.Context()).Model(user).Update("password_hash", user.PasswordHash).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(200, gin.H{"message": "Password updated successfully"})
	}
}

func currentUser(c *gin.Context, db *gorm.DB) (*models.User, bool) {
	var user models.User
	err := db.WithContext(c.Request.Context()).First(&user, c.GetUint(middleware.UserIDKey)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		abortWith(c, http.StatusNotFound, "not_found", "User not found", nil)
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &user, true
}
