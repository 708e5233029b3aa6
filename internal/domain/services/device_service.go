package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"device-management-service/internal/domain/models"
	"device-management-service/internal/infrastructure/config"
)

var (
	// ErrDeviceNotFound is returned when no device matches the business id
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceAlreadyExists is returned on create when the business id is taken
	ErrDeviceAlreadyExists = errors.New("device already exists")
)

// Columns accepted by the list sort parameter.
var sortableColumns = map[string]bool{
	"created_at":    true,
	"updated_at":    true,
	"last_seen":     true,
	"name":          true,
	"device_id":     true,
	"device_type":   true,
	"status":        true,
	"battery_level": true,
}

// DeviceFilter restricts the device listing
type DeviceFilter struct {
	Search     string
	DeviceType models.DeviceType
	Status     models.DeviceStatus
	IsActive   *bool
	OwnerID    string
	MinBattery *float64
	MaxBattery *float64
}

// DeviceListQuery bundles filter, sort and pagination for a listing
type DeviceListQuery struct {
	Filter    DeviceFilter
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// HealthSummary aggregates fleet health
type HealthSummary struct {
	TotalDevices     int64   `json:"total_devices"`
	Online           int64   `json:"online"`
	Offline          int64   `json:"offline"`
	Error            int64   `json:"error"`
	Maintenance      int64   `json:"maintenance"`
	HealthPercentage float64 `json:"health_percentage"`
	AvgBattery       float64 `json:"avg_battery"`
	LowBattery       int64   `json:"low_battery"`
	StaleDevices     int64   `json:"stale_devices"`
	AvgHealthScore   float64 `json:"avg_health_score"`
}

// InterfaceDeviceService defines the device store operations
type InterfaceDeviceService interface {
	CreateDevice(device *models.Device) error
	GetDeviceByID(deviceID string) (*models.Device, error)
	GetDevices(query DeviceListQuery) ([]models.Device, int64, error)
	UpdateDevice(deviceID string, updates map[string]interface{}) (*models.Device, error)
	UpdateDeviceStatus(deviceID string, status models.DeviceStatus, batteryLevel, signalStrength *float64) (*models.Device, error)
	DeleteDevice(deviceID string) error
	CountDevices() (int64, error)
	GetDevicesByStatus(status models.DeviceStatus) ([]models.Device, error)
	GetHealthSummary() (*HealthSummary, error)
}

// DeviceService implements the device store on gorm
type DeviceService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewDeviceService creates a new device service
func NewDeviceService(db *gorm.DB, cfg *config.Config) InterfaceDeviceService {
	return &DeviceService{
		DB:     db,
		Config: cfg,
	}
}

// CreateDevice inserts a new device. The business id must be unused.
func (s *DeviceService) CreateDevice(device *models.Device) error {
	var count int64
	if err := s.DB.Model(&models.Device{}).Where("device_id = ?", device.DeviceID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDeviceAlreadyExists
	}

	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}
	if device.FirmwareVersion == "" {
		device.FirmwareVersion = "1.0.0"
	}
	if device.Config == "" {
		device.Config = "{}"
	}
	device.IsActive = true

	return s.DB.Create(device).Error
}

// GetDeviceByID fetches a device by its business identifier
func (s *DeviceService) GetDeviceByID(deviceID string) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// GetDevices returns one page of devices matching the filter, plus the
// total match count before pagination.
func (s *DeviceService) GetDevices(query DeviceListQuery) ([]models.Device, int64, error) {
	tx := s.applyFilter(s.DB.Model(&models.Device{}), query.Filter)

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := query.SortBy
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(query.SortOrder, "asc") {
		order = "ASC"
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = s.Config.DefaultPageSize
	}
	if pageSize > s.Config.MaxPageSize {
		pageSize = s.Config.MaxPageSize
	}

	var devices []models.Device
	err := tx.Order(sortBy + " " + order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&devices).Error
	if err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

// applyFilter translates a DeviceFilter into query conditions
func (s *DeviceService) applyFilter(tx *gorm.DB, f DeviceFilter) *gorm.DB {
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		tx = tx.Where(
			"LOWER(name) LIKE ? OR LOWER(device_id) LIKE ? OR LOWER(COALESCE(location, '')) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if f.DeviceType != "" {
		tx = tx.Where("device_type = ?", f.DeviceType)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.IsActive != nil {
		tx = tx.Where("is_active = ?", *f.IsActive)
	}
	if f.OwnerID != "" {
		tx = tx.Where("owner_id = ?", f.OwnerID)
	}
	if f.MinBattery != nil {
		tx = tx.Where("battery_level >= ?", *f.MinBattery)
	}
	if f.MaxBattery != nil {
		tx = tx.Where("battery_level <= ?", *f.MaxBattery)
	}
	return tx
}

// UpdateDevice applies a partial update. The business id is immutable and
// dropped from the update set if present.
func (s *DeviceService) UpdateDevice(deviceID string, updates map[string]interface{}) (*models.Device, error) {
	device, err := s.GetDeviceByID(deviceID)
	if err != nil {
		return nil, err
	}

	delete(updates, "device_id")
	if len(updates) > 0 {
		if err := s.DB.Model(device).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetDeviceByID(deviceID)
}

// UpdateDeviceStatus sets the status and optional battery/signal readings,
// and always refreshes last_seen.
func (s *DeviceService) UpdateDeviceStatus(deviceID string, status models.DeviceStatus, batteryLevel, signalStrength *float64) (*models.Device, error) {
	device, err := s.GetDeviceByID(deviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":    status,
		"last_seen": now,
	}
	if batteryLevel != nil {
		updates["battery_level"] = *batteryLevel
	}
	if signalStrength != nil {
		updates["signal_strength"] = *signalStrength
	}

	if err := s.DB.Model(device).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.GetDeviceByID(deviceID)
}

// DeleteDevice hard-deletes a device
func (s *DeviceService) DeleteDevice(deviceID string) error {
	device, err := s.GetDeviceByID(deviceID)
	if err != nil {
		return err
	}
	return s.DB.Delete(device).Error
}

// CountDevices returns the total number of devices
func (s *DeviceService) CountDevices() (int64, error) {
	var count int64
	err := s.DB.Model(&models.Device{}).Count(&count).Error
	return count, err
}

// GetDevicesByStatus returns all devices in the given status
func (s *DeviceService) GetDevicesByStatus(status models.DeviceStatus) ([]models.Device, error) {
	var devices []models.Device
	err := s.DB.Where("status = ?", status).Find(&devices).Error
	return devices, err
}

// GetHealthSummary aggregates counts, battery and staleness over the fleet.
// An empty fleet yields zeroes, never a division error.
func (s *DeviceService) GetHealthSummary() (*HealthSummary, error) {
	var devices []models.Device
	if err := s.DB.Select("status", "battery_level", "signal_strength", "last_seen").Find(&devices).Error; err != nil {
		return nil, err
	}

	summary := &HealthSummary{TotalDevices: int64(len(devices))}
	if summary.TotalDevices == 0 {
		return summary, nil
	}

	var batterySum float64
	var batteryCount int64
	var scoreSum float64
	for _, d := range devices {
		switch d.Status {
		case models.DeviceStatusOnline:
			summary.Online++
		case models.DeviceStatusOffline:
			summary.Offline++
		case models.DeviceStatusError:
			summary.Error++
		case models.DeviceStatusMaintenance:
			summary.Maintenance++
		}

		if d.BatteryLevel != nil {
			batterySum += *d.BatteryLevel
			batteryCount++
			if *d.BatteryLevel < 20 {
				summary.LowBattery++
			}
		}

		if !IsDeviceOnline(d.LastSeen, s.Config.DeviceHeartbeatTimeout) {
			summary.StaleDevices++
		}

		scoreSum += DeviceHealthScore(d.Status, d.BatteryLevel, d.SignalStrength)
	}

	summary.HealthPercentage = round2(float64(summary.Online) / float64(summary.TotalDevices) * 100)
	if batteryCount > 0 {
		summary.AvgBattery = round2(batterySum / float64(batteryCount))
	}
	summary.AvgHealthScore = round2(scoreSum / float64(summary.TotalDevices))

	return summary, nil
}
