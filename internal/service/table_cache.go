package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
)

// TableStatusCache holds the best known status of each table. It has an
// in-process layer and an optional Redis layer shared between replicas.
// It is advisory only: last writer wins and stale entries are tolerated.
type TableStatusCache struct {
	mu     sync.RWMutex
	local  map[uint64]model.TableStatus
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTableStatusCache returns a cache backed by rdb. A nil client or a
// disabled config keeps the cache process-local.
func NewTableStatusCache(rdb *redis.Client, cfg config.TableCacheConfig) *TableStatusCache {
	c := &TableStatusCache{
		local:  make(map[uint64]model.TableStatus),
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
	if cfg.Enabled {
		c.rdb = rdb
	}
	if c.prefix == "" {
		c.prefix = "tables:status"
	}
	return c
}

func (c *TableStatusCache) key(tableID uint64) string {
	return c.prefix + ":" + strconv.FormatUint(tableID, 10)
}

// Get returns the cached status, consulting Redis on a local miss.
// TableUnknown means nothing is known about the table.
func (c *TableStatusCache) Get(ctx context.Context, tableID uint64) model.TableStatus {
	c.mu.RLock()
	st, ok := c.local[tableID]
	c.mu.RUnlock()
	if ok {
		return st
	}
	if c.rdb == nil {
		return model.TableUnknown
	}
	v, err := c.rdb.Get(ctx, c.key(tableID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("table cache: redis get table=%d: %v", tableID, err)
		}
		return model.TableUnknown
	}
	st = model.TableStatus(v)
	c.mu.Lock()
	c.local[tableID] = st
	c.mu.Unlock()
	return st
}

// Set records status locally and in Redis.
func (c *TableStatusCache) Set(ctx context.Context, tableID uint64, status model.TableStatus) {
	c.mu.Lock()
	c.local[tableID] = status
	c.mu.Unlock()
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(tableID), string(status), c.ttl).Err(); err != nil {
		log.Printf("table cache: redis set table=%d: %v", tableID, err)
	}
}

// HandleTableStatusChanged consumes table.status.changed notifications.
func (c *TableStatusCache) HandleTableStatusChanged() queue.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var evt queue.TableStatusChanged
		if err := json.Unmarshal(body, &evt); err != nil {
			log.Printf("table cache: bad notification: %v", err)
			return err
		}
		if evt.TableID == 0 {
			return nil
		}
		c.Set(ctx, evt.TableID, model.ParseTableStatus(evt.NewStatus))
		return nil
	}
}
