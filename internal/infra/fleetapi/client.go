// Package fleetapi is a thin client for the vehicle and energy cloud API.
package fleetapi

import (
	"context"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// Client is the remote surface the coordinators depend on.
type Client interface {
	// Products lists the vehicles and energy sites on the account.
	Products(ctx context.Context) ([]domain.Product, error)

	// VehicleState is the cheap wake-state check. It does not wake the vehicle.
	VehicleState(ctx context.Context, vin string) (*domain.VehicleState, error)

	// VehicleData fetches full telemetry. It is rate limited and keeps the vehicle awake.
	VehicleData(ctx context.Context, vin string) (*domain.VehicleData, error)

	// LiveStatus fetches an energy site's live power flow.
	LiveStatus(ctx context.Context, siteID string) (*domain.LiveStatus, error)

	// SiteInfo fetches an energy site's configuration.
	SiteInfo(ctx context.Context, siteID string) (*domain.SiteInfo, error)
}
