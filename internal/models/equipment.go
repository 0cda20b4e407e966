package models

import "time"

// EquipmentType is a distributable equipment category (uniforms, boots, ...).
type EquipmentType struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Unit      string    `db:"unit" json:"unit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EquipmentDistribution is a yearly allocation of one equipment type.
// Quantity caps the number of receipts that may ever exist for it.
type EquipmentDistribution struct {
	ID              string    `db:"id" json:"id"`
	Year            int       `db:"year" json:"year"`
	EquipmentTypeID string    `db:"equipment_type_id" json:"equipment_type_id"`
	Quantity        int       `db:"quantity" json:"quantity"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EquipmentReceipt records whether a student received a unit from a
// distribution. Unique per (user, distribution).
type EquipmentReceipt struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	DistributionID string     `db:"distribution_id" json:"distribution_id"`
	Received       bool       `db:"received" json:"received"`
	ReceivedAt     *time.Time `db:"received_at" json:"received_at,omitempty"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
