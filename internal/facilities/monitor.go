package facilities

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/medisur/internal/metrics"
)

// Monitor periodically probes every facility's intake host and marks it
// ACTIVE or INACTIVE depending on the answer.
type Monitor struct {
	store      *Store
	client     *resty.Client
	healthPath string
	interval   time.Duration
}

// NewMonitor creates a Monitor. healthPath is appended to each intake URI.
func NewMonitor(store *Store, interval time.Duration, healthPath string) *Monitor {
	return &Monitor{
		store:      store,
		client:     resty.New().SetTimeout(5 * time.Second),
		healthPath: healthPath,
		interval:   interval,
	}
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.CheckAll(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("facility health sweep failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckAll probes all registered facilities concurrently.
func (m *Monitor) CheckAll(ctx context.Context) error {
	all, err := m.store.List(ctx, ListFilter{})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range all {
		f := all[i]
		g.Go(func() error {
			m.check(gctx, &f)
			return nil
		})
	}
	return g.Wait()
}

// check leaves facilities without an intake URI alone: there is nothing to
// probe, and the handoff reports the missing address when one is chosen.
func (m *Monitor) check(ctx context.Context, f *Facility) {
	if f.IntakeURI == "" {
		return
	}
	status := StatusInactive
	url := strings.TrimRight(f.IntakeURI, "/") + m.healthPath
	resp, err := m.client.R().SetContext(ctx).Get(url)
	if err == nil && resp.IsSuccess() {
		status = StatusActive
	}

	up := 0.0
	if status == StatusActive {
		up = 1
	}
	metrics.FacilityUp.WithLabelValues(f.Name).Set(up)

	if status == f.Status {
		return
	}
	if err := m.store.SetStatus(ctx, f.ID, status); err != nil {
		log.Error().Err(err).Str("facility", f.Name).Msg("updating facility status")
		return
	}
	log.Info().Str("facility", f.Name).Str("status", string(status)).Msg("facility status changed")
}
