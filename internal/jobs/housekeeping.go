package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/account-service/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Housekeeper runs periodic maintenance on the cron schedule it was created with.
type Housekeeper struct {
	eventSvc  services.EventServiceProvider
	retention time.Duration
	cron      *cron.Cron
}

// NewHousekeeper creates a Housekeeper that prunes events older than retention
// according to the standard cron expression schedule.
func NewHousekeeper(schedule string, retention time.Duration, eventSvc services.EventServiceProvider) (*Housekeeper, error) {
	h := &Housekeeper{
		eventSvc:  eventSvc,
		retention: retention,
		cron:      cron.New(),
	}
	if _, err := h.cron.AddFunc(schedule, func() { h.PruneEvents(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", schedule, err)
	}
	return h, nil
}

// Start begins running scheduled jobs in the background.
func (h *Housekeeper) Start() {
	log.Info().Msg("Starting background housekeeping...")
	h.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (h *Housekeeper) Stop() {
	<-h.cron.Stop().Done()
	log.Info().Msg("Stopped background housekeeping.")
}

// PruneEvents deletes events past the retention window.
func (h *Housekeeper) PruneEvents(ctx context.Context) {
	n, err := h.eventSvc.PruneEvents(ctx, h.retention)
	if err != nil {
		log.Error().Err(err).Msg("Housekeeping: failed to prune events")
		return
	}
	log.Info().Int64("deleted", n).Dur("retention", h.retention).Msg("Housekeeping: pruned events")
}
