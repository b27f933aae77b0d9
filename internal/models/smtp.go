package models

import "time"

// SMTPSettings — реквизиты исходящей почты. Сама отправка писем живёт
// снаружи; здесь только хранение и кэш (ключ smtp-settings).
type SMTPSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Host      string `gorm:"size:100;index" json:"host"`
	Port      int    `json:"port"`
	Username  string `gorm:"size:100;index" json:"username"`
	Password  string `gorm:"size:255" json:"-"`
	FromEmail string `gorm:"size:255" json:"from_email"`
}
