package cache

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const driverGeoKey = "dispatch:drivers:geo"

// GeoAddDriver 写入/刷新骑手地理位置索引
func GeoAddDriver(ctx context.Context, driverID uint, lat, lng float64) error {
	if !Enabled() {
		return nil
	}
	return redisClient.GeoAdd(ctx, buildKey(driverGeoKey), &redis.GeoLocation{
		Name:      strconv.FormatUint(uint64(driverID), 10),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// GeoRemoveDriver 从地理索引移除骑手（下线/接单后）
func GeoRemoveDriver(ctx context.Context, driverID uint) error {
	if !Enabled() {
		return nil
	}
	return redisClient.ZRem(ctx, buildKey(driverGeoKey), strconv.FormatUint(uint64(driverID), 10)).Err()
}

// GeoNearbyDrivers 按距离升序返回半径内的骑手 ID
func GeoNearbyDrivers(ctx context.Context, lat, lng, radiusKM float64) ([]uint, error) {
	if !Enabled() {
		return nil, nil
	}
	results, err := redisClient.GeoSearch(ctx, buildKey(driverGeoKey), &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKM,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseUint(r, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
