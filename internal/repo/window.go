package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/edirooss/camwall/internal/supervisor"
	"github.com/edirooss/camwall/pkg/jsonx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	keyPrefix = "camwall:window:"
	keySuffix = ":status"

	// MinStatusTTL is the shortest lifetime of a record. Windows gone after
	// a reload expire on their own.
	MinStatusTTL = time.Minute
	ttlRounds    = 3
	scanCount    = 100
)

// StatusTTL keeps a record alive across ttlRounds missed publishing rounds
// of the given interval.
func StatusTTL(interval time.Duration) time.Duration {
	return max(ttlRounds*interval, MinStatusTTL)
}

func windowStatusKey(key string) string { return keyPrefix + key + keySuffix }

// Record mirrors the JSON stored at camwall:window:<key>:status.
//
//   - Instance: id of the camwall run that wrote it; a restarted wall gets a
//     new one.
//   - At: UTC millis of the publishing round.
type Record struct {
	Instance string `json:"instance"`
	At       int64  `json:"at"`
	supervisor.WindowStatus
}

// WindowRepository publishes and reads window statuses.
//
// Values are overwritten on every publishing round and expire after
// StatusTTL of the round interval. Readers must treat them as eventually
// consistent snapshots.
type WindowRepository struct {
	client   *RedisClient
	log      *zap.Logger
	instance string
	now      func() time.Time
	ttl      atomic.Int64 // time.Duration
}

func newWindowRepository(log *zap.Logger, client *RedisClient) *WindowRepository {
	r := &WindowRepository{
		client:   client,
		log:      log.Named("window"),
		instance: uuid.NewString(),
		now:      time.Now,
	}
	r.ttl.Store(int64(MinStatusTTL))
	return r
}

// SetPublishInterval adapts the record lifetime to how often statuses are
// republished. Safe to call while publishing.
func (r *WindowRepository) SetPublishInterval(interval time.Duration) {
	r.ttl.Store(int64(StatusTTL(interval)))
}

// TTL returns the lifetime given to records written now.
func (r *WindowRepository) TTL() time.Duration { return time.Duration(r.ttl.Load()) }

// Instance returns the id stamped on every record of this run.
func (r *WindowRepository) Instance() string { return r.instance }

// Publish writes all statuses in one pipelined round trip. It implements
// supervisor.Publisher.
func (r *WindowRepository) Publish(ctx context.Context, windows []supervisor.WindowStatus) error {
	if len(windows) == 0 {
		return nil
	}
	at := r.now().UTC().UnixMilli()
	ttl := r.TTL()

	pipe := r.client.Pipeline()
	for _, w := range windows {
		b, err := json.Marshal(Record{Instance: r.instance, At: at, WindowStatus: w})
		if err != nil {
			return fmt.Errorf("marshal %s: %w", w.Key, err)
		}
		pipe.Set(ctx, windowStatusKey(w.Key), b, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish %d statuses: %w", len(windows), err)
	}
	return nil
}

// List returns every published status ordered by display, screen and slot.
// Keys that vanish between SCAN and MGET are skipped.
func (r *WindowRepository) List(ctx context.Context) ([]Record, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*"+keySuffix, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}

	out := make([]Record, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			r.log.Debug("window status expired during MGET", zap.String("key", keys[i]))
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("key %s at index %d: unexpected type (got %T, want string)", keys[i], i, v)
		}
		var rec Record
		if err := jsonx.Decode(strings.NewReader(s), &rec); err != nil {
			return nil, fmt.Errorf("key %s: %w", keys[i], err)
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Display != b.Display {
			return a.Display < b.Display
		}
		if a.Screen != b.Screen {
			return a.Screen < b.Screen
		}
		return a.Slot < b.Slot
	})
}
