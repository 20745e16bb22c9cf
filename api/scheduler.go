/*
scheduler.go - Periodic room occupancy sampler

PURPOSE:
  Samples room counts by housekeeping status on a ticker and publishes
  them as the frontdesk_rooms gauge, so dashboards see occupancy without
  polling the API.

DESIGN:
  - One background goroutine with a configurable interval
  - Samples once immediately on Start
  - A failed sample is logged and skipped; the gauge keeps its last value

USAGE:
  sampler := NewOccupancySampler(eng, metrics, log)
  sampler.Start()
  // ... later
  sampler.Stop()

SEE ALSO:
  - metrics.go: the gauge
  - engine/room.go: RoomRegistry.Rooms
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/frontdesk-engine/engine"
)

// OccupancySampler publishes room counts by status.
type OccupancySampler struct {
	Engine   *engine.Engine
	Metrics  *Metrics
	Interval time.Duration

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewOccupancySampler(eng *engine.Engine, metrics *Metrics, log *slog.Logger) *OccupancySampler {
	return &OccupancySampler{
		Engine:   eng,
		Metrics:  metrics,
		Interval: time.Minute,
		log:      log,
	}
}

// Start begins sampling. Calling Start twice is a no-op.
func (s *OccupancySampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.Info("occupancy sampler started", "interval", s.Interval)
}

// Stop halts sampling and waits for an in-flight sample to finish.
func (s *OccupancySampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("occupancy sampler stopped")
}

func (s *OccupancySampler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.Sample(context.Background())
	for {
		select {
		case <-ticker.C:
			s.Sample(context.Background())
		case <-stop:
			return
		}
	}
}

// Sample reads the rooms once and updates the gauge.
func (s *OccupancySampler) Sample(ctx context.Context) {
	rooms, err := s.Engine.Rooms.Rooms(ctx, "")
	if err != nil {
		s.log.Warn("occupancy sample failed", "error", err)
		return
	}
	counts := make(map[engine.RoomStatus]int)
	for _, r := range rooms {
		counts[r.Status]++
	}
	s.Metrics.setRooms(counts)
}
