package driverdir

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
	"github.com/redis/go-redis/v9"
)

const (
	geoKey        = "drivers:geo"
	hashKeyPrefix = "driver:"
)

// reserveScript flips the available flag off only when the driver is online
// and still available, so two concurrent assignments cannot both win.
var reserveScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "online") == "1" and redis.call("HGET", KEYS[1], "available") == "1" then
    redis.call("HSET", KEYS[1], "available", "0")
    return 1
end
return 0
`)

// RedisDirectory keeps driver snapshots in hashes and their positions in a
// GEO set, so the candidate pool for a pickup point is a single radius query.
type RedisDirectory struct {
	client *redis.Client
}

func NewRedisDirectory(addr string) *RedisDirectory {
	return &RedisDirectory{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (d *RedisDirectory) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}

func hashKey(driverID string) string {
	return hashKeyPrefix + driverID
}

func (d *RedisDirectory) Nearby(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error) {
	ids, err := d.client.GeoSearch(ctx, geoKey, &redis.GeoSearchQuery{
		Longitude:  loc.Lon,
		Latitude:   loc.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search: %w", err)
	}

	out := make([]driver.Driver, 0, len(ids))
	for _, id := range ids {
		fields, err := d.client.HGetAll(ctx, hashKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("load driver %s: %w", id, err)
		}
		if len(fields) == 0 {
			// Position without a snapshot: the hash expired or was never
			// written. Skip rather than fabricate a candidate.
			continue
		}
		out = append(out, snapshotFromFields(id, fields))
	}
	return out, nil
}

func snapshotFromFields(id string, f map[string]string) driver.Driver {
	rating, _ := strconv.ParseFloat(f["rating"], 64)
	completed, _ := strconv.Atoi(f["completed"])
	lat, _ := strconv.ParseFloat(f["lat"], 64)
	lon, _ := strconv.ParseFloat(f["lon"], 64)
	updated, _ := time.Parse(time.RFC3339, f["updated_at"])
	return driver.Driver{
		ID:                  id,
		Location:            geo.Point{Lat: lat, Lon: lon},
		Online:              f["online"] == "1",
		Available:           f["available"] == "1",
		Rating:              rating,
		CompletedDeliveries: completed,
		VehicleType:         driver.VehicleType(f["vehicle"]),
		UpdatedAt:           updated,
	}
}

func (d *RedisDirectory) Reserve(ctx context.Context, driverID string) (bool, error) {
	n, err := reserveScript.Run(ctx, d.client, []string{hashKey(driverID)}).Int()
	if err != nil {
		return false, fmt.Errorf("reserve driver %s: %w", driverID, err)
	}
	return n == 1, nil
}

func (d *RedisDirectory) Release(ctx context.Context, driverID string) error {
	return d.client.HSet(ctx, hashKey(driverID), "available", "1").Err()
}

func (d *RedisDirectory) UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error {
	pipe := d.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Name: driverID, Longitude: loc.Lon, Latitude: loc.Lat})
	pipe.HSet(ctx, hashKey(driverID),
		"lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		"lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64),
		"updated_at", time.Now().UTC().Format(time.RFC3339),
	)
	_, err := pipe.Exec(ctx)
	return err
}

func (d *RedisDirectory) SetOnline(ctx context.Context, driverID string, online bool) error {
	return d.client.HSet(ctx, hashKey(driverID), "online", boolField(online)).Err()
}

func (d *RedisDirectory) SetAvailability(ctx context.Context, driverID string, available bool) error {
	return d.client.HSet(ctx, hashKey(driverID), "available", boolField(available)).Err()
}

// Register writes the full snapshot for a driver coming online.
func (d *RedisDirectory) Register(ctx context.Context, dr driver.Driver) error {
	pipe := d.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{Name: dr.ID, Longitude: dr.Location.Lon, Latitude: dr.Location.Lat})
	pipe.HSet(ctx, hashKey(dr.ID),
		"online", boolField(dr.Online),
		"available", boolField(dr.Available),
		"rating", strconv.FormatFloat(dr.Rating, 'f', -1, 64),
		"completed", strconv.Itoa(dr.CompletedDeliveries),
		"vehicle", string(dr.VehicleType),
		"lat", strconv.FormatFloat(dr.Location.Lat, 'f', -1, 64),
		"lon", strconv.FormatFloat(dr.Location.Lon, 'f', -1, 64),
		"updated_at", time.Now().UTC().Format(time.RFC3339),
	)
	_, err := pipe.Exec(ctx)
	return err
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
