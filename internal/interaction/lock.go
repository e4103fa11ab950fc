// Package interaction toggles whether the map responds to user gestures
// while an overlay (such as the dataset dropdown) is open.
package interaction

import (
	"log/slog"
	"sync"

	"github.com/couchcryptid/submission-map/internal/domain"
	"github.com/couchcryptid/submission-map/internal/observability"
)

// LockController enables or disables every map gesture as one group. The
// locked state is kept per surface, so one controller can serve several.
type LockController struct {
	mu      sync.Mutex
	locked  map[domain.Surface]bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLockController creates an unlocked controller. metrics may be nil.
func NewLockController(logger *slog.Logger, metrics *observability.Metrics) *LockController {
	return &LockController{
		locked:  make(map[domain.Surface]bool),
		logger:  logger,
		metrics: metrics,
	}
}

// Lock disables all gestures on surface. Locking twice is a no-op.
func (c *LockController) Lock(surface domain.Surface) {
	c.set(surface, true)
}

// Unlock re-enables all gestures on surface. Unlocking an unlocked surface
// is a no-op.
func (c *LockController) Unlock(surface domain.Surface) {
	c.set(surface, false)
}

// Locked reports whether any surface is locked.
func (c *LockController) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locked) > 0
}

// LockedOn reports whether surface is locked.
func (c *LockController) LockedOn(surface domain.Surface) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked[surface]
}

func (c *LockController) set(surface domain.Surface, locked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked[surface] == locked {
		return
	}

	enabled := !locked
	if b, ok := surface.(domain.GestureBatcher); ok {
		b.SetGestures(domain.AllGestures, enabled)
	} else {
		for _, g := range domain.AllGestures {
			if enabled {
				surface.EnableGesture(g)
			} else {
				surface.DisableGesture(g)
			}
		}
	}
	if locked {
		c.locked[surface] = true
	} else {
		delete(c.locked, surface)
	}

	c.logger.Debug("map interaction toggled", "locked", locked)
	if c.metrics != nil {
		c.metrics.SurfaceLocked.Set(float64(len(c.locked)))
	}
}

// OverlayListener translates overlay notifications from the UI into lock
// and unlock calls on one surface.
type OverlayListener struct {
	controller *LockController
	surface    domain.Surface
}

// NewOverlayListener binds controller to surface.
func NewOverlayListener(controller *LockController, surface domain.Surface) *OverlayListener {
	return &OverlayListener{controller: controller, surface: surface}
}

// OverlayOpened locks the map.
func (l *OverlayListener) OverlayOpened() {
	l.controller.Lock(l.surface)
}

// OverlayClosed unlocks the map.
func (l *OverlayListener) OverlayClosed() {
	l.controller.Unlock(l.surface)
}

// Locked reports whether the bound surface is currently locked.
func (l *OverlayListener) Locked() bool {
	return l.controller.LockedOn(l.surface)
}
