package engine

import (
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

// reaper periodically sweeps GTD orders past their expiry off the
// book. It runs as a tomb.v2-supervised goroutine so Close can wait
// for a clean shutdown instead of leaking a ticker.
type reaper struct {
	engine   *Engine
	interval time.Duration
	t        tomb.Tomb
}

func newReaper(e *Engine, interval time.Duration) *reaper {
	return &reaper{engine: e, interval: interval}
}

// start launches the sweep loop if interval is positive. A zero or
// negative interval disables expiry sweeping entirely; expired GTD
// orders then stay on the book until SweepExpired is called directly
// (as the market manager's CleanExpiredOrders does) or they are
// cancelled.
func (r *reaper) start() {
	if r.interval <= 0 {
		return
	}
	r.t.Go(func() error {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.t.Dying():
				return nil
			}
		}
	})
}

// stop halts the sweep goroutine and waits for it to exit. Safe to call
// even if start never launched one.
func (r *reaper) stop() {
	if r.interval <= 0 {
		// start launched nothing, and Wait on a tomb that never ran a
		// goroutine would block forever.
		return
	}
	r.t.Kill(nil)
	_ = r.t.Wait()
}

// sweep finds and cancels every expired GTD order. A panic in a single
// pass is recovered and logged rather than taking down the goroutine,
// so a bug in expiry handling degrades rather than crashes the engine.
func (r *reaper) sweep() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("symbol", r.engine.symbol).
				Interface("panic", rec).
				Msg("expiry reaper recovered from panic")
		}
	}()
	r.engine.SweepExpired()
}

// SweepExpired cancels every GTD order whose expiry has passed and
// returns how many were removed. The background reaper calls this on
// every tick; a market manager also calls it directly for an
// on-demand clean-expired-orders sweep.
func (e *Engine) SweepExpired() int {
	defer e.meter.Track("sweep_expired")()
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.opts.Now()
	var expired []string
	for id, entry := range e.index {
		if entry.order.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		e.cancelOrderLocked(id)
	}
	if len(expired) > 0 {
		log.Debug().
			Str("symbol", e.symbol).
			Int("count", len(expired)).
			Msg("expiry reaper swept orders")
	}
	return len(expired)
}
