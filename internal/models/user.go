package models

import "time"

type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(254)" json:"email"`
	FirstName    string     `gorm:"type:varchar(150)" json:"first_name"`
	LastName     string     `gorm:"type:varchar(150)" json:"last_name"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"is_admin"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"-"`
}

func (User) TableName() string { return "users" }

// DisplayName falls back to the username when no full name is set.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}
