package models

import "time"

// Group is a class whose members share one token each. Groups are owned by the
// enrollment directory and synced in over RabbitMQ.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string { return "enrollment_groups" }
