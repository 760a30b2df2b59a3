package models

import (
	"time"

	"gorm.io/gorm"
)

// User: студент, авторизованный через еКурсы (Moodle).
type User struct {
	gorm.Model
	AccessToken   string `gorm:"size:255;uniqueIndex;not null"` // Токен еКурсов
	EcoursesID    int    `gorm:"uniqueIndex;not null"`          // ID пользователя на еКурсах
	FirstName     string `gorm:"size:255;not null"`
	SecondName    string `gorm:"size:255;not null"`
	ProfilePicURL string `gorm:"size:255"`
	IsAdmin       bool   `gorm:"not null;default:false"` // Преподаватель, управляющий очередями
	LastSeenAt    *time.Time
}
