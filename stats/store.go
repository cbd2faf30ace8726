package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"distance-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store handles persistent storage for stats
type Store struct {
	db       *bolt.DB
	dbPath   string
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats is the counter set that survives restarts
type PersistedStats struct {
	TotalRequests     int64 `json:"total_requests"`
	DistanceRequests  int64 `json:"distance_requests"`
	HealthRequests    int64 `json:"health_requests"`
	AdminRequests     int64 `json:"admin_requests"`
	OtherRequests     int64 `json:"other_requests"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	RateLimitAllowed  int64 `json:"rate_limit_allowed"`
	RateLimitRejected int64 `json:"rate_limit_rejected"`
	UpstreamAttempts  int64 `json:"upstream_attempts"`
	UpstreamFailures  int64 `json:"upstream_failures"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	LastSaved time.Time `json:"last_saved"`
}

// NewStore creates a new stats store with a dedicated BoltDB file
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %v", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the global stats
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}

		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}

	st := Get()
	st.TotalRequests.Store(persisted.TotalRequests)
	st.DistanceRequests.Store(persisted.DistanceRequests)
	st.HealthRequests.Store(persisted.HealthRequests)
	st.AdminRequests.Store(persisted.AdminRequests)
	st.OtherRequests.Store(persisted.OtherRequests)
	st.CacheHits.Store(persisted.CacheHits)
	st.CacheMisses.Store(persisted.CacheMisses)
	st.RateLimitAllowed.Store(persisted.RateLimitAllowed)
	st.RateLimitRejected.Store(persisted.RateLimitRejected)
	st.UpstreamAttempts.Store(persisted.UpstreamAttempts)
	st.UpstreamFailures.Store(persisted.UpstreamFailures)
	st.Status2xx.Store(persisted.Status2xx)
	st.Status4xx.Store(persisted.Status4xx)
	st.Status5xx.Store(persisted.Status5xx)

	if !persisted.LastSaved.IsZero() {
		log.Infof("%s Loaded persisted stats (last saved %s)", logcolors.LogStats, persisted.LastSaved.Format(time.RFC3339))
	}
	return nil
}

// Save snapshots the global stats to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Get()
	persisted := PersistedStats{
		TotalRequests:     st.TotalRequests.Load(),
		DistanceRequests:  st.DistanceRequests.Load(),
		HealthRequests:    st.HealthRequests.Load(),
		AdminRequests:     st.AdminRequests.Load(),
		OtherRequests:     st.OtherRequests.Load(),
		CacheHits:         st.CacheHits.Load(),
		CacheMisses:       st.CacheMisses.Load(),
		RateLimitAllowed:  st.RateLimitAllowed.Load(),
		RateLimitRejected: st.RateLimitRejected.Load(),
		UpstreamAttempts:  st.UpstreamAttempts.Load(),
		UpstreamFailures:  st.UpstreamFailures.Load(),
		Status2xx:         st.Status2xx.Load(),
		Status4xx:         st.Status4xx.Load(),
		Status5xx:         st.Status5xx.Load(),
		LastSaved:         time.Now(),
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		return b.Put([]byte(statsKey), data)
	})
}

// Run saves stats on interval until Close is called
func (s *Store) Run(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Periodic save failed: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Close flushes a final snapshot and closes the database
func (s *Store) Close() error {
	close(s.stopChan)
	s.wg.Wait()
	if err := s.Save(); err != nil {
		log.Warnf("%s Final save failed: %v", logcolors.LogStats, err)
	}
	return s.db.Close()
}
