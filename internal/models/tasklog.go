package models

import (
	"time"

	"gorm.io/datatypes"
)

// Статусы задач реконсиляции.
const (
	TaskStatusSuccess = "success"
	TaskStatusError   = "error"
	TaskStatusSkipped = "skipped"
)

// TaskLog — журнал результатов фоновых задач: что выполнялось, по какой
// сущности, сколько было попыток и чем кончилось. Details — произвольные
// поля результата (reason, interface, имя пира и т.п.).
type TaskLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Kind     string         `gorm:"size:32;index" json:"kind"` // onboard|sync-config|inject-peer|remove-peer
	EntityID uint           `gorm:"index" json:"entity_id"`
	Status   string         `gorm:"size:16;index" json:"status"`
	Attempts int            `json:"attempts"`
	Details  datatypes.JSON `json:"details"`
}
