package coordinator

import (
	"context"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/polling/metrics"
)

// EnergyAPI is the part of the remote client used for energy sites.
type EnergyAPI interface {
	LiveStatus(ctx context.Context, siteID string) (*domain.LiveStatus, error)
	SiteInfo(ctx context.Context, siteID string) (*domain.SiteInfo, error)
}

// EnergyLiveCoordinator polls the live power flow of a site.
type EnergyLiveCoordinator = Coordinator[*domain.LiveStatus]

// EnergySiteCoordinator polls the static configuration of a site.
type EnergySiteCoordinator = Coordinator[*domain.SiteInfo]

// NewEnergyLiveCoordinator creates a fixed-interval coordinator for live status.
func NewEnergyLiveCoordinator(api EnergyAPI, siteID string, interval time.Duration, clock Clock) *EnergyLiveCoordinator {
	return New[*domain.LiveStatus](Options{
		Resource:           domain.ResourceEnergyLive,
		ID:                 siteID,
		Interval:           interval,
		Clock:              clock,
		OfflineIsTransient: true,
	}, RefreshFunc[*domain.LiveStatus](func(ctx context.Context) (Result[*domain.LiveStatus], error) {
		metrics.RemoteCallsTotal.WithLabelValues(string(domain.ResourceEnergyLive), "live_status").Inc()
		status, err := api.LiveStatus(ctx, siteID)
		if err != nil {
			return Result[*domain.LiveStatus]{}, err
		}
		return Result[*domain.LiveStatus]{Payload: status}, nil
	}))
}

// NewEnergySiteCoordinator creates a fixed-interval coordinator for site info.
func NewEnergySiteCoordinator(api EnergyAPI, siteID string, interval time.Duration, clock Clock) *EnergySiteCoordinator {
	return New[*domain.SiteInfo](Options{
		Resource:           domain.ResourceEnergySite,
		ID:                 siteID,
		Interval:           interval,
		Clock:              clock,
		OfflineIsTransient: true,
	}, RefreshFunc[*domain.SiteInfo](func(ctx context.Context) (Result[*domain.SiteInfo], error) {
		metrics.RemoteCallsTotal.WithLabelValues(string(domain.ResourceEnergySite), "site_info").Inc()
		info, err := api.SiteInfo(ctx, siteID)
		if err != nil {
			return Result[*domain.SiteInfo]{}, err
		}
		return Result[*domain.SiteInfo]{Payload: info}, nil
	}))
}
