// Package spatial provides a Redis GEO backed implementation of the
// clustering index used to partition orders into dispatch regions.
package spatial

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/infra/logger"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// RedisIndex clusters points with a density scan backed by Redis GEOSEARCH.
// Every query loads the points into a transient GEO key which is deleted when
// the scan completes.
type RedisIndex struct {
	client *redis.Client
	log    logger.Logger
}

// NewRedisIndex connects to Redis with the given configuration.
func NewRedisIndex(cfg Config) *RedisIndex {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisIndex{client: client, log: logger.New("spatial_index")}
}

// NewRedisIndexWithClient wraps an existing client, mainly for tests.
func NewRedisIndexWithClient(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client, log: logger.New("spatial_index")}
}

// Available reports whether Redis answers a ping.
func (r *RedisIndex) Available(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}

// Close releases the underlying connection pool.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

// ClusterPoints assigns a cluster id to each point. Points whose eps-meter
// neighborhood holds at least minPoints members seed clusters; neighborhoods
// that share a point merge. Points in no cluster get -1.
func (r *RedisIndex) ClusterPoints(ctx context.Context, points []model.LatLng, epsMeters float64, minPoints int) ([]int, error) {
	if len(points) == 0 {
		return nil, nil
	}
	key := "dispatch:cluster:" + uuid.NewString()
	locations := make([]*redis.GeoLocation, len(points))
	for i, p := range points {
		locations[i] = &redis.GeoLocation{
			Name:      strconv.Itoa(i),
			Longitude: p.Lng,
			Latitude:  p.Lat,
		}
	}
	if err := r.client.GeoAdd(ctx, key, locations...).Err(); err != nil {
		return nil, faults.External("redis", fmt.Errorf("geoadd: %w", err))
	}
	defer func() {
		if err := r.client.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			r.log.Warnf("failed to drop transient geo key %s: %v", key, err)
		}
	}()

	neighborhoods := make([][]int, len(points))
	for i, p := range points {
		members, err := r.client.GeoSearch(ctx, key, &redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     epsMeters,
			RadiusUnit: "m",
		}).Result()
		if err != nil {
			return nil, faults.External("redis", fmt.Errorf("geosearch: %w", err))
		}
		neighbors := make([]int, 0, len(members))
		for _, m := range members {
			idx, err := strconv.Atoi(m)
			if err != nil {
				continue
			}
			neighbors = append(neighbors, idx)
		}
		neighborhoods[i] = neighbors
	}
	return clusterFromNeighborhoods(neighborhoods, minPoints), nil
}

// clusterFromNeighborhoods runs the density scan over precomputed
// neighborhoods. Core points (at least minPoints neighbors, self included)
// merge with neighboring cores; border points join the cluster of any core
// neighbor; everything else is noise (-1).
func clusterFromNeighborhoods(neighborhoods [][]int, minPoints int) []int {
	n := len(neighborhoods)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	core := make([]bool, n)
	for i, nb := range neighborhoods {
		core[i] = len(nb) >= minPoints
	}
	for i, nb := range neighborhoods {
		if !core[i] {
			continue
		}
		for _, j := range nb {
			if core[j] {
				union(i, j)
			}
		}
	}

	ids := make([]int, n)
	labels := make(map[int]int)
	label := func(root int) int {
		l, ok := labels[root]
		if !ok {
			l = len(labels)
			labels[root] = l
		}
		return l
	}
	for i := range ids {
		if core[i] {
			ids[i] = label(find(i))
			continue
		}
		ids[i] = -1
		for _, j := range neighborhoods[i] {
			if core[j] {
				ids[i] = label(find(j))
				break
			}
		}
	}
	return ids
}
