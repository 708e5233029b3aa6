package services

import (
	"math"
	"time"

	"device-management-service/internal/domain/models"
)

// IsDeviceOnline reports whether the device has been seen within the
// heartbeat timeout. A device never seen counts as offline.
func IsDeviceOnline(lastSeen *time.Time, timeout time.Duration) bool {
	if lastSeen == nil {
		return false
	}
	return time.Since(*lastSeen) < timeout
}

// DeviceHealthScore computes a 0-100 score from status, battery level and
// signal strength. Offline costs 50, error 75, maintenance 25; low battery
// and weak signal subtract further.
func DeviceHealthScore(status models.DeviceStatus, batteryLevel, signalStrength *float64) float64 {
	score := 100.0

	switch status {
	case models.DeviceStatusOffline:
		score -= 50
	case models.DeviceStatusError:
		score -= 75
	case models.DeviceStatusMaintenance:
		score -= 25
	}

	if batteryLevel != nil {
		switch {
		case *batteryLevel < 20:
			score -= 30
		case *batteryLevel < 50:
			score -= 15
		}
	}

	if signalStrength != nil && *signalStrength < -80 {
		score -= 20
	}

	return math.Max(0, math.Min(100, score))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
