package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/models"
	gormmodels "github.com/amopromo/flightdeck/internal/models/gorm"
)

// Cache key scheme, versioned so a format change never reads stale shapes
const (
	airportKeyPrefix = "airports:by_iata:v1:"
	datasetKey       = "airports:data:v1"
	lastSyncKey      = "airports:last_sync:v1"
)

// ErrNothingToCache is returned by CacheAirportsData for an empty dataset
var ErrNothingToCache = errors.New("no airport data to cache")

// AirportFinder is the durable-store lookup the read-through path falls
// back to. Satisfied by repositories.AirportRepository.
type AirportFinder interface {
	FindByIATA(ctx context.Context, iata string) (*gormmodels.Airport, error)
}

// BulkWriteResult reports what happened to each record of a bulk cache
// write. A failure must always be attributable: records that could not be
// serialized are counted here per code, while a fast-layer connectivity
// failure is the call's returned error.
type BulkWriteResult struct {
	Requested       int      `json:"requested"`
	Written         int      `json:"written"`
	SerializeFailed int      `json:"serialize_failed"`
	FailedCodes     []string `json:"failed_codes,omitempty"`
}

// AirportStore is the read-through airport cache: a TTL-bound fast layer
// in front of the durable airports table. The fast layer is a disposable
// accelerant and never the source of truth.
type AirportStore struct {
	fast    Cache
	durable AirportFinder
	ttl     time.Duration
	metrics *metrics.MetricsRegistry
	group   singleflight.Group
}

func NewAirportStore(fast Cache, durable AirportFinder, ttl time.Duration, reg *metrics.MetricsRegistry) *AirportStore {
	return &AirportStore{
		fast:    fast,
		durable: durable,
		ttl:     ttl,
		metrics: reg,
	}
}

func airportKey(code string) string {
	return airportKeyPrefix + code
}

// NormalizeCode canonicalizes an IATA code for lookups
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Get returns the airport for code, checking the fast layer first and
// falling back to the durable store, repopulating the fast layer on a
// durable hit. The second return is false only when neither layer has the
// code. A fast-layer outage degrades to the durable store and is not an
// error for the caller.
func (s *AirportStore) Get(ctx context.Context, code string) (*models.AirportRecord, bool, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, false, nil
	}

	data, found, err := s.fast.Get(ctx, airportKey(code))
	if err != nil {
		logging.Warn("Fast layer unreachable, falling back to durable store",
			"iata", code, "error", err.Error())
	} else if found {
		var rec models.AirportRecord
		if uerr := json.Unmarshal(data, &rec); uerr == nil {
			s.countHit("fast")
			return &rec, true, nil
		}
		// Corrupt entry, drop it and fall through to the durable store
		logging.Warn("Dropping undecodable cache entry", "iata", code)
		_ = s.fast.Delete(ctx, airportKey(code))
	}
	s.countMiss("fast")

	// A per-code miss may still be covered by the full-dataset entry left
	// by the last bulk prime; check it before touching the durable store.
	if rec, ok := s.getFromDataset(ctx, code); ok {
		s.countHit("dataset")
		if data, merr := json.Marshal(rec); merr == nil {
			if serr := s.fast.Set(ctx, airportKey(code), data, s.ttl); serr != nil {
				logging.Warn("Failed to repopulate fast layer", "iata", code, "error", serr.Error())
			}
		}
		return rec, true, nil
	}

	// Concurrent misses for the same code share one durable lookup
	v, err, _ := s.group.Do(code, func() (interface{}, error) {
		airport, err := s.durable.FindByIATA(ctx, code)
		if err != nil {
			return nil, err
		}
		if airport == nil {
			return nil, nil
		}
		rec := models.RecordFromEntity(airport)
		if data, merr := json.Marshal(rec); merr == nil {
			if serr := s.fast.Set(ctx, airportKey(code), data, s.ttl); serr != nil {
				logging.Warn("Failed to repopulate fast layer", "iata", code, "error", serr.Error())
			}
		}
		return &rec, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("durable lookup for %s: %w", code, err)
	}
	if v == nil {
		s.countMiss("durable")
		return nil, false, nil
	}
	s.countHit("durable")
	return v.(*models.AirportRecord), true, nil
}

func (s *AirportStore) getFromDataset(ctx context.Context, code string) (*models.AirportRecord, bool) {
	data, found, err := s.fast.Get(ctx, datasetKey)
	if err != nil || !found {
		return nil, false
	}
	var dataset map[string]models.AirportRecord
	if uerr := json.Unmarshal(data, &dataset); uerr != nil {
		logging.Warn("Dropping undecodable dataset entry", "error", uerr.Error())
		_ = s.fast.Delete(ctx, datasetKey)
		return nil, false
	}
	rec, ok := dataset[code]
	if !ok {
		return nil, false
	}
	return &rec, true
}

// CacheAirportsData bulk-populates the fast layer from a full dataset,
// typically after an import. Per-record serialization failures are reported
// in the result without aborting the batch; only a fast-layer connectivity
// failure makes the call itself fail, as ErrUnavailable.
func (s *AirportStore) CacheAirportsData(ctx context.Context, airports map[string]models.AirportRecord) (BulkWriteResult, error) {
	result := BulkWriteResult{Requested: len(airports)}
	if len(airports) == 0 {
		return result, ErrNothingToCache
	}

	items := make(map[string][]byte, len(airports)+2)
	dataset := make(map[string]models.AirportRecord, len(airports))
	for code, rec := range airports {
		code = NormalizeCode(code)
		data, err := json.Marshal(rec)
		if err != nil {
			result.SerializeFailed++
			result.FailedCodes = append(result.FailedCodes, code)
			s.countWriteError("serialize")
			logging.Error("Failed to serialize airport for cache", "iata", code, "error", err.Error())
			continue
		}
		items[airportKey(code)] = data
		dataset[code] = rec
	}
	sort.Strings(result.FailedCodes)

	if len(items) == 0 {
		return result, ErrNothingToCache
	}

	if data, err := json.Marshal(dataset); err == nil {
		items[datasetKey] = data
	}
	items[lastSyncKey] = []byte(time.Now().UTC().Format(time.RFC3339))

	if err := s.fast.SetMulti(ctx, items, s.ttl); err != nil {
		s.countWriteError("connectivity")
		logging.Error("Failed to bulk-write airports to fast layer",
			"airports", len(airports), "error", err.Error())
		return result, err
	}

	result.Written = result.Requested - result.SerializeFailed
	logging.Info("Cached airports data", "airports", result.Written, "serialize_failed", result.SerializeFailed)
	return result, nil
}

// Invalidate removes one code from the fast layer; the durable store is
// untouched. The full-dataset entry goes with it, or the stale snapshot
// would keep serving the invalidated code.
func (s *AirportStore) Invalidate(ctx context.Context, code string) error {
	if err := s.fast.Delete(ctx, airportKey(NormalizeCode(code))); err != nil {
		return err
	}
	return s.fast.Delete(ctx, datasetKey)
}

// InvalidateAll flushes every airport entry from the fast layer
func (s *AirportStore) InvalidateAll(ctx context.Context) error {
	if err := s.fast.DeletePrefix(ctx, airportKeyPrefix); err != nil {
		return err
	}
	if err := s.fast.Delete(ctx, datasetKey); err != nil {
		return err
	}
	return s.fast.Delete(ctx, lastSyncKey)
}

// LastSync returns the time of the last bulk prime, if the marker is
// still live in the fast layer
func (s *AirportStore) LastSync(ctx context.Context) (time.Time, bool) {
	data, found, err := s.fast.Get(ctx, lastSyncKey)
	if err != nil || !found {
		return time.Time{}, false
	}
	ts, perr := time.Parse(time.RFC3339, string(data))
	if perr != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (s *AirportStore) countHit(layer string) {
	if s.metrics != nil {
		s.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (s *AirportStore) countMiss(layer string) {
	if s.metrics != nil {
		s.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}

func (s *AirportStore) countWriteError(cause string) {
	if s.metrics != nil {
		s.metrics.CacheWriteErrors.WithLabelValues(cause).Inc()
	}
}
