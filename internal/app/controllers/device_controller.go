package controllers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"device-management-service/internal/app/middleware"
	"device-management-service/internal/domain/models"
	"device-management-service/internal/domain/services"
	"device-management-service/internal/domain/services/container"
	"device-management-service/internal/error/code"
	"device-management-service/internal/error/response"
)

// InterfaceDeviceController defines the device endpoints
type InterfaceDeviceController interface {
	CreateDevice()
	GetDevices()
	GetDevice()
	UpdateDevice()
	DeleteDevice()
	UpdateDeviceStatus()
	GetHealthSummary()
}

// DeviceController handles device requests
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController creates a new device controller
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// DeviceCreateRequest is the create payload
type DeviceCreateRequest struct {
	DeviceID        string                 `json:"device_id" binding:"required,min=3,max=100"`
	Name            string                 `json:"name" binding:"required,min=1,max=200"`
	DeviceType      models.DeviceType      `json:"device_type" binding:"required,oneof=sensor actuator gateway"`
	Location        *string                `json:"location" binding:"omitempty,max=200"`
	FirmwareVersion string                 `json:"firmware_version" binding:"omitempty,max=50"`
	Config          map[string]interface{} `json:"config"`
	OwnerID         *string                `json:"owner_id" binding:"omitempty,max=100"`
}

// DeviceUpdateRequest is the partial-update payload. A device_id field is
// accepted for compatibility and ignored: the business id is immutable.
type DeviceUpdateRequest struct {
	DeviceID        *string                `json:"device_id"`
	Name            *string                `json:"name" binding:"omitempty,min=1,max=200"`
	DeviceType      *models.DeviceType     `json:"device_type" binding:"omitempty,oneof=sensor actuator gateway"`
	Status          *models.DeviceStatus   `json:"status" binding:"omitempty,oneof=online offline error maintenance"`
	Location        *string                `json:"location" binding:"omitempty,max=200"`
	FirmwareVersion *string                `json:"firmware_version" binding:"omitempty,max=50"`
	Config          map[string]interface{} `json:"config"`
	BatteryLevel    *float64               `json:"battery_level" binding:"omitempty,gte=0,lte=100"`
	SignalStrength  *float64               `json:"signal_strength" binding:"omitempty,gte=-100,lte=0"`
	IsActive        *bool                  `json:"is_active"`
	OwnerID         *string                `json:"owner_id" binding:"omitempty,max=100"`
}

// DeviceStatusUpdateRequest is the status-update payload
type DeviceStatusUpdateRequest struct {
	Status         models.DeviceStatus `json:"status" binding:"required,oneof=online offline error maintenance"`
	BatteryLevel   *float64            `json:"battery_level" binding:"omitempty,gte=0,lte=100"`
	SignalStrength *float64            `json:"signal_strength" binding:"omitempty,gte=-100,lte=0"`
}

// DeviceListRequest carries the list query parameters
type DeviceListRequest struct {
	Page       int      `form:"page,default=1" binding:"omitempty,gte=1"`
	PageSize   int      `form:"page_size,default=10" binding:"omitempty,gte=1,lte=100"`
	Search     string   `form:"search"`
	DeviceType string   `form:"device_type" binding:"omitempty,oneof=sensor actuator gateway"`
	Status     string   `form:"status" binding:"omitempty,oneof=online offline error maintenance"`
	IsActive   *bool    `form:"is_active"`
	OwnerID    string   `form:"owner_id"`
	MinBattery *float64 `form:"min_battery" binding:"omitempty,gte=0,lte=100"`
	MaxBattery *float64 `form:"max_battery" binding:"omitempty,gte=0,lte=100"`
	SortBy     string   `form:"sort_by,default=created_at"`
	SortOrder  string   `form:"sort_order,default=desc" binding:"omitempty,oneof=asc desc"`
}

// HandleDeviceFunc returns a gin handler dispatching to the controller
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "createDevice":
			controller.CreateDevice()
		case "getDevices":
			controller.GetDevices()
		case "getDevice":
			controller.GetDevice()
		case "updateDevice":
			controller.UpdateDevice()
		case "deleteDevice":
			controller.DeleteDevice()
		case "updateDeviceStatus":
			controller.UpdateDeviceStatus()
		case "getHealthSummary":
			controller.GetHealthSummary()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "unknown method", nil)
		}
	}
}

// cacheSnapshot write-throughs a device snapshot, best effort
func (c *DeviceController) cacheSnapshot(device *models.DeviceResponse) {
	if deviceCache := c.Container.GetDeviceCache(); deviceCache != nil {
		deviceCache.CacheDevice(c.Ctx.Request.Context(), device.DeviceID, device)
	}
}

// publishEvent fires a lifecycle event, best effort
func (c *DeviceController) publishEvent(eventType, deviceID string, data interface{}) {
	if publisher := c.Container.GetEventPublisher(); publisher != nil {
		publisher.PublishDeviceEvent(eventType, deviceID, data)
	}
}

// failFromServiceError maps store errors onto the response taxonomy
func (c *DeviceController) failFromServiceError(err error) {
	switch {
	case errors.Is(err, services.ErrDeviceNotFound):
		response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
	case errors.Is(err, services.ErrDeviceAlreadyExists):
		response.Fail(c.Ctx, code.ErrDeviceAlreadyExist, nil)
	default:
		c.Container.GetLogger().Error("device store error", zap.Error(err))
		response.ServerError(c.Ctx)
	}
}

// CreateDevice registers a new device. The owner defaults to the token
// subject when not supplied.
func (c *DeviceController) CreateDevice() {
	var req DeviceCreateRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, err.Error())
		return
	}

	device := &models.Device{
		DeviceID:        req.DeviceID,
		Name:            req.Name,
		DeviceType:      req.DeviceType,
		Location:        req.Location,
		FirmwareVersion: req.FirmwareVersion,
		OwnerID:         req.OwnerID,
	}
	device.SetConfigMap(req.Config)

	if device.OwnerID == nil {
		if subject := c.Ctx.GetString(middleware.ContextKeySubject); subject != "" {
			device.OwnerID = &subject
		}
	}

	deviceService := c.Container.GetDeviceService()
	if err := deviceService.CreateDevice(device); err != nil {
		if errors.Is(err, services.ErrDeviceAlreadyExists) {
			response.FailWithMessage(c.Ctx, code.ErrDeviceAlreadyExist,
				fmt.Sprintf("Device with ID %s already exists", req.DeviceID), nil)
			return
		}
		c.failFromServiceError(err)
		return
	}

	snapshot := device.ToResponse()
	c.cacheSnapshot(snapshot)
	c.publishEvent("created", device.DeviceID, snapshot)

	c.Container.GetLogger().Info("device created", zap.String("device_id", device.DeviceID))
	response.Created(c.Ctx, snapshot)
}

// GetDevices lists devices with filtering, sorting and pagination
func (c *DeviceController) GetDevices() {
	var req DeviceListRequest
	if err := c.Ctx.ShouldBindQuery(&req); err != nil {
		response.ParamError(c.Ctx, err.Error())
		return
	}

	// Explicit zero values slip past the omitempty binding checks; clamp
	// them here so the response echoes the page actually served.
	cfg := c.Container.GetConfig()
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = cfg.DefaultPageSize
	}
	if req.PageSize > cfg.MaxPageSize {
		req.PageSize = cfg.MaxPageSize
	}

	query := services.DeviceListQuery{
		Filter: services.DeviceFilter{
			Search:     req.Search,
			DeviceType: models.DeviceType(req.DeviceType),
			Status:     models.DeviceStatus(req.Status),
			IsActive:   req.IsActive,
			OwnerID:    req.OwnerID,
			MinBattery: req.MinBattery,
			MaxBattery: req.MaxBattery,
		},
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}

	devices, total, err := c.Container.GetDeviceService().GetDevices(query)
	if err != nil {
		c.failFromServiceError(err)
		return
	}

	items := make([]*models.DeviceResponse, 0, len(devices))
	for i := range devices {
		items = append(items, devices[i].ToResponse())
	}

	totalPages := (total + int64(req.PageSize) - 1) / int64(req.PageSize)
	response.Success(c.Ctx, models.DeviceListResponse{
		Devices:    items,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	})
}

// GetDevice fetches a single device, cache first
func (c *DeviceController) GetDevice() {
	deviceID := c.Ctx.Param("device_id")

	if deviceCache := c.Container.GetDeviceCache(); deviceCache != nil {
		if cached, ok := deviceCache.GetDevice(c.Ctx.Request.Context(), deviceID); ok {
			response.Success(c.Ctx, cached)
			return
		}
	}

	device, err := c.Container.GetDeviceService().GetDeviceByID(deviceID)
	if err != nil {
		c.failFromServiceError(err)
		return
	}

	snapshot := device.ToResponse()
	c.cacheSnapshot(snapshot)
	response.Success(c.Ctx, snapshot)
}

// UpdateDevice applies a partial update
func (c *DeviceController) UpdateDevice() {
	deviceID := c.Ctx.Param("device_id")

	var req DeviceUpdateRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.DeviceType != nil {
		updates["device_type"] = *req.DeviceType
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.FirmwareVersion != nil {
		updates["firmware_version"] = *req.FirmwareVersion
	}
	if req.Config != nil {
		var d models.Device
		d.SetConfigMap(req.Config)
		updates["config"] = d.Config
	}
	if req.BatteryLevel != nil {
		updates["battery_level"] = *req.BatteryLevel
	}
	if req.SignalStrength != nil {
		updates["signal_strength"] = *req.SignalStrength
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.OwnerID != nil {
		updates["owner_id"] = *req.OwnerID
	}

	device, err := c.Container.GetDeviceService().UpdateDevice(deviceID, updates)
	if err != nil {
		c.failFromServiceError(err)
		return
	}

	snapshot := device.ToResponse()
	c.cacheSnapshot(snapshot)
	c.publishEvent("updated", deviceID, snapshot)

	c.Container.GetLogger().Info("device updated", zap.String("device_id", deviceID))
	response.Success(c.Ctx, snapshot)
}

// DeleteDevice hard-deletes a device and invalidates its cache entry
func (c *DeviceController) DeleteDevice() {
	deviceID := c.Ctx.Param("device_id")

	if err := c.Container.GetDeviceService().DeleteDevice(deviceID); err != nil {
		c.failFromServiceError(err)
		return
	}

	if deviceCache := c.Container.GetDeviceCache(); deviceCache != nil {
		deviceCache.InvalidateDevice(c.Ctx.Request.Context(), deviceID)
	}
	c.publishEvent("deleted", deviceID, gin.H{"device_id": deviceID})

	c.Container.GetLogger().Info("device deleted", zap.String("device_id", deviceID))
	response.NoContent(c.Ctx)
}

// UpdateDeviceStatus sets status plus optional battery/signal readings
func (c *DeviceController) UpdateDeviceStatus() {
	deviceID := c.Ctx.Param("device_id")

	var req DeviceStatusUpdateRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, err.Error())
		return
	}

	device, err := c.Container.GetDeviceService().UpdateDeviceStatus(deviceID, req.Status, req.BatteryLevel, req.SignalStrength)
	if err != nil {
		c.failFromServiceError(err)
		return
	}

	snapshot := device.ToResponse()
	c.cacheSnapshot(snapshot)
	c.publishEvent("status_updated", deviceID, snapshot)

	c.Container.GetLogger().Info("device status updated",
		zap.String("device_id", deviceID), zap.String("status", string(req.Status)))
	response.Success(c.Ctx, snapshot)
}

// GetHealthSummary aggregates fleet health
func (c *DeviceController) GetHealthSummary() {
	summary, err := c.Container.GetDeviceService().GetHealthSummary()
	if err != nil {
		c.failFromServiceError(err)
		return
	}
	response.Success(c.Ctx, summary)
}
