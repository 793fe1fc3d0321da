package models

import "time"

// Status is the gate decision stored with each visit.
type Status string

const (
	StatusActive   Status = "ACTIVO"
	StatusInactive Status = "INACTIVO"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// VisitRecord is one append-only row of the visit log.
type VisitRecord struct {
	ID     uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Fecha  time.Time `gorm:"column:fecha;not null;index" json:"fecha"`
	Estado Status    `gorm:"column:estado;size:16;not null" json:"estado"`
}

// TableName keeps the historical table name.
func (VisitRecord) TableName() string {
	return "registros"
}
