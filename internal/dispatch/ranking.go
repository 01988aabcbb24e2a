package dispatch

import (
	"sort"

	"github.com/liveshop-next/internal/geo"
	"github.com/liveshop-next/internal/models"
)

// candidate 参与排序的骑手
type candidate struct {
	driver      models.Driver
	distanceKM  float64
	hasLocation bool
}

// rankCandidates 距离升序排序；无位置的骑手排在最后；
// 同距并列时最久未派单者优先（从未派单视为最闲）
func rankCandidates(drivers []models.Driver, pickupLat, pickupLng float64) []candidate {
	candidates := make([]candidate, 0, len(drivers))
	for _, d := range drivers {
		c := candidate{driver: d}
		if d.CurrentLat != nil && d.CurrentLng != nil {
			c.hasLocation = true
			c.distanceKM = geo.HaversineKM(*d.CurrentLat, *d.CurrentLng, pickupLat, pickupLng)
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.hasLocation != b.hasLocation {
			return a.hasLocation
		}
		if a.hasLocation && a.distanceKM != b.distanceKM {
			return a.distanceKM < b.distanceKM
		}
		return moreIdle(a.driver, b.driver)
	})
	return candidates
}

func moreIdle(a, b models.Driver) bool {
	if a.LastDispatchedAt == nil && b.LastDispatchedAt == nil {
		return a.ID < b.ID
	}
	if a.LastDispatchedAt == nil {
		return true
	}
	if b.LastDispatchedAt == nil {
		return false
	}
	return a.LastDispatchedAt.Before(*b.LastDispatchedAt)
}
