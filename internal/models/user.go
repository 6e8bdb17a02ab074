package models

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleProviderAdmin UserRole = "provider_admin"
	UserRoleScheduler     UserRole = "scheduler"
	UserRoleDispatcher    UserRole = "dispatcher"
	UserRoleReadOnly      UserRole = "read_only"
)

type User struct {
	gorm.Model            // This embeds ID, CreatedAt, UpdatedAt, and DeletedAt
	ProviderID   uint     `json:"provider_id" gorm:"column:provider_id;not null;index"`
	Provider     Provider `json:"-"`
	Email        string   `json:"email" gorm:"column:email;unique;not null"`
	Name         string   `json:"name" gorm:"column:name"`
	Title        string   `json:"title" gorm:"column:title"`
	Phone        string   `json:"phone" gorm:"column:phone"`
	Password     string   `json:"-" gorm:"-:all"` // Temporary field for password handling
	PasswordHash string   `json:"-" gorm:"column:password_hash;not null"`
	Role         UserRole `json:"role" gorm:"column:role;not null;default:'scheduler'"`
	Active       bool     `json:"active" gorm:"column:active;default:true"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// CanWrite reports whether the role may mutate tickets and claims.
func (u *User) CanWrite() bool {
	return u.Active && u.Role != UserRoleReadOnly
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	u.Password = ""
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
