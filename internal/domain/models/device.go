package models

import (
	"encoding/json"
	"time"
)

// DeviceType classifies a device
type DeviceType string

const (
	DeviceTypeSensor   DeviceType = "sensor"
	DeviceTypeActuator DeviceType = "actuator"
	DeviceTypeGateway  DeviceType = "gateway"
)

// DeviceStatus represents the reported status of a device
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusError       DeviceStatus = "error"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

// Device represents a managed IoT device. DeviceID is the caller-supplied
// business identifier; ID is the store-assigned key. Config is stored as
// serialized JSON text and decoded on read.
type Device struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	DeviceID       string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"device_id"`
	Name           string       `gorm:"type:varchar(200);not null" json:"name"`
	DeviceType     DeviceType   `gorm:"type:varchar(50);not null" json:"device_type"`
	Status         DeviceStatus `gorm:"type:varchar(20);default:'offline'" json:"status"`
	Location       *string      `gorm:"type:varchar(200)" json:"location"`
	FirmwareVersion string      `gorm:"type:varchar(50);default:'1.0.0'" json:"firmware_version"`
	LastSeen       *time.Time   `json:"last_seen"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Config         string       `gorm:"type:text;default:'{}'" json:"-"`
	BatteryLevel   *float64     `json:"battery_level"`
	SignalStrength *float64     `json:"signal_strength"`
	IsActive       bool         `gorm:"default:true" json:"is_active"`
	OwnerID        *string      `gorm:"type:varchar(100)" json:"owner_id"`
}

// GetConfigMap decodes the stored configuration blob. Malformed or empty
// text yields an empty map rather than an error.
func (d *Device) GetConfigMap() map[string]interface{} {
	if d.Config == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(d.Config), &m); err != nil || m == nil {
		return map[string]interface{}{}
	}
	return m
}

// SetConfigMap serializes a configuration map into the stored blob
func (d *Device) SetConfigMap(m map[string]interface{}) {
	if len(m) == 0 {
		d.Config = "{}"
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		d.Config = "{}"
		return
	}
	d.Config = string(b)
}

// DeviceResponse is the JSON projection of a device, with config decoded
type DeviceResponse struct {
	ID              uint                   `json:"id"`
	DeviceID        string                 `json:"device_id"`
	Name            string                 `json:"name"`
	DeviceType      DeviceType             `json:"device_type"`
	Status          DeviceStatus           `json:"status"`
	Location        *string                `json:"location"`
	FirmwareVersion string                 `json:"firmware_version"`
	LastSeen        *time.Time             `json:"last_seen"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Config          map[string]interface{} `json:"config"`
	BatteryLevel    *float64               `json:"battery_level"`
	SignalStrength  *float64               `json:"signal_strength"`
	IsActive        bool                   `json:"is_active"`
	OwnerID         *string                `json:"owner_id"`
}

// ToResponse converts the entity into its JSON projection
func (d *Device) ToResponse() *DeviceResponse {
	return &DeviceResponse{
		ID:              d.ID,
		DeviceID:        d.DeviceID,
		Name:            d.Name,
		DeviceType:      d.DeviceType,
		Status:          d.Status,
		Location:        d.Location,
		FirmwareVersion: d.FirmwareVersion,
		LastSeen:        d.LastSeen,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		Config:          d.GetConfigMap(),
		BatteryLevel:    d.BatteryLevel,
		SignalStrength:  d.SignalStrength,
		IsActive:        d.IsActive,
		OwnerID:         d.OwnerID,
	}
}

// DeviceListResponse is the paginated list payload
type DeviceListResponse struct {
	Devices    []*DeviceResponse `json:"devices"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int64             `json:"total_pages"`
}

// ValidDeviceType reports whether t is one of the enumerated device types
func ValidDeviceType(t DeviceType) bool {
	switch t {
	case DeviceTypeSensor, DeviceTypeActuator, DeviceTypeGateway:
		return true
	}
	return false
}

// ValidDeviceStatus reports whether s is one of the enumerated statuses
func ValidDeviceStatus(s DeviceStatus) bool {
	switch s {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusError, DeviceStatusMaintenance:
		return true
	}
	return false
}
