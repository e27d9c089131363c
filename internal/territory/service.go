package territory

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ugaemi/geotag-server/internal/event"
	"github.com/ugaemi/geotag-server/internal/geo"
)

// ownerState holds everything one player owns. All fields are guarded by mu, which
// gives each owner a single writer while different owners proceed in parallel.
type ownerState struct {
	mu          sync.Mutex
	territories []*Territory
	claim       *ClaimProgress
	inside      map[string]bool // territory ID -> owner currently inside
}

// Service tracks claims and territories for one game.
type Service struct {
	cfg Config
	pub event.Publisher
	now func() time.Time

	// mu guards the maps only. Never acquire an ownerState lock while holding it.
	mu     sync.RWMutex
	owners map[string]*ownerState
	claims map[string]string // claim ID -> owner ID

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for new claims and the sweeper.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a territory service. Call Start to run the decay sweeper and
// Close to stop it.
func NewService(cfg Config, pub event.Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = event.Discard
	}
	s := &Service{
		cfg:    cfg,
		pub:    pub,
		now:    time.Now,
		owners: make(map[string]*ownerState),
		claims: make(map[string]string),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service tuning.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) owner(ownerID string, create bool) *ownerState {
	s.mu.RLock()
	o := s.owners[ownerID]
	s.mu.RUnlock()
	if o != nil || !create {
		return o
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if o = s.owners[ownerID]; o == nil {
		o = &ownerState{inside: make(map[string]bool)}
		s.owners[ownerID] = o
	}
	return o
}

func (s *Service) ownerOfClaim(claimID string) (*ownerState, string, bool) {
	s.mu.RLock()
	ownerID, ok := s.claims[claimID]
	o := s.owners[ownerID]
	s.mu.RUnlock()
	if !ok || o == nil {
		return nil, "", false
	}
	return o, ownerID, true
}

// StartClaim begins claiming a territory centered on center.
func (s *Service) StartClaim(ownerID string, center geo.GeoPoint, name string) (ClaimProgress, error) {
	if !center.Valid() {
		return ClaimProgress{}, ErrInvalidLocation
	}

	o := s.owner(ownerID, true)
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.claim != nil {
		return ClaimProgress{}, ErrClaimInProgress
	}
	if len(o.territories) >= s.cfg.MaxTerritoriesPerPlayer {
		return ClaimProgress{}, ErrMaxTerritoriesReached
	}
	for _, t := range o.territories {
		if geo.DistanceMeters(center, t.Zone.Center) < s.cfg.MinTerritoryDistance {
			return ClaimProgress{}, ErrTooCloseToExisting
		}
	}

	if name == "" {
		name = fmt.Sprintf("Territory %d", len(o.territories)+1)
	}
	now := s.now()
	c := &ClaimProgress{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		Center:       center,
		Name:         name,
		StartedAt:    now,
		LastUpdateAt: now,
	}
	o.claim = c

	s.mu.Lock()
	s.claims[c.ID] = ownerID
	s.mu.Unlock()

	slog.Info("territory claim started", "owner", ownerID, "claim", c.ID, "name", name)
	return *c, nil
}

// UpdateProgress advances a claim with the owner's current location.
//
// Outside the claim radius the claim pauses and keeps its progress. Only time between
// two consecutive in-zone updates counts, so the interval spanning a return from a
// pause is not credited. On completion the claim becomes a Territory.
func (s *Service) UpdateProgress(claimID string, current geo.GeoPoint, now time.Time) (Progress, error) {
	o, ownerID, ok := s.ownerOfClaim(claimID)
	if !ok {
		return Progress{}, ErrClaimNotFound
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	c := o.claim
	if c == nil || c.ID != claimID {
		return Progress{}, ErrClaimNotFound
	}

	inside := geo.DistanceMeters(current, c.Center) <= s.cfg.TerritoryRadius
	if !inside {
		if !c.Paused {
			slog.Debug("territory claim paused", "owner", ownerID, "claim", claimID)
		}
		c.Paused = true
		c.LastUpdateAt = now
		return s.progressOf(c, StatusPaused), nil
	}

	if c.Paused {
		c.Paused = false
		c.LastUpdateAt = now
		slog.Debug("territory claim resumed", "owner", ownerID, "claim", claimID)
		return s.progressOf(c, StatusClaiming), nil
	}

	if elapsed := now.Sub(c.LastUpdateAt); elapsed > 0 {
		c.Accumulated += elapsed
	}
	c.LastUpdateAt = now
	c.Progress = s.fraction(c.Accumulated)

	if c.Accumulated < s.cfg.ClaimTime {
		return s.progressOf(c, StatusClaiming), nil
	}

	t := s.materialize(o, c, now)
	return Progress{
		ClaimID:   claimID,
		Status:    StatusComplete,
		Progress:  1,
		Territory: &t,
	}, nil
}

// materialize turns a finished claim into a territory. Caller must hold o.mu.
func (s *Service) materialize(o *ownerState, c *ClaimProgress, now time.Time) Territory {
	id := uuid.New().String()
	t := &Territory{
		ID:      id,
		OwnerID: c.OwnerID,
		Zone: geo.CircularZone{
			ID:           id,
			OwnerID:      c.OwnerID,
			Center:       c.Center,
			RadiusMeters: s.cfg.TerritoryRadius,
			Name:         c.Name,
			Active:       true,
		},
		WarningRadius: s.cfg.WarningRadius,
		CreatedAt:     now,
		LastVisitedAt: now,
		VisitCount:    1,
	}
	o.territories = append(o.territories, t)
	o.inside[t.ID] = true
	o.claim = nil

	s.mu.Lock()
	delete(s.claims, c.ID)
	s.mu.Unlock()

	slog.Info("territory claimed", "owner", c.OwnerID, "territory", t.ID, "name", c.Name)
	s.pub.Publish(event.Event{Type: event.TerritoryClaimed, OwnerID: c.OwnerID, At: now, Data: *t})
	return *t
}

func (s *Service) fraction(accumulated time.Duration) float64 {
	if s.cfg.ClaimTime <= 0 {
		return 1
	}
	return min(1, float64(accumulated)/float64(s.cfg.ClaimTime))
}

func (s *Service) progressOf(c *ClaimProgress, status Status) Progress {
	remaining := s.cfg.ClaimTime - c.Accumulated
	if remaining < 0 {
		remaining = 0
	}
	return Progress{
		ClaimID:       c.ID,
		Status:        status,
		Progress:      c.Progress,
		TimeRemaining: remaining,
	}
}

// CancelClaim discards a claim.
func (s *Service) CancelClaim(claimID string) error {
	o, ownerID, ok := s.ownerOfClaim(claimID)
	if !ok {
		return ErrClaimNotFound
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.claim == nil || o.claim.ID != claimID {
		return ErrClaimNotFound
	}
	o.claim = nil

	s.mu.Lock()
	delete(s.claims, claimID)
	s.mu.Unlock()

	slog.Info("territory claim cancelled", "owner", ownerID, "claim", claimID)
	return nil
}

// ActiveClaim returns the owner's in-flight claim, if any.
func (s *Service) ActiveClaim(ownerID string) (ClaimProgress, bool) {
	o := s.owner(ownerID, false)
	if o == nil {
		return ClaimProgress{}, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.claim == nil {
		return ClaimProgress{}, false
	}
	return *o.claim, true
}

// IsInTerritory returns the first of the owner's territories containing p.
func (s *Service) IsInTerritory(ownerID string, p geo.GeoPoint) Presence {
	o := s.owner(ownerID, false)
	if o == nil {
		return Presence{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, t := range o.territories {
		d := geo.DistanceMeters(p, t.Zone.Center)
		if d <= t.Zone.RadiusMeters {
			cp := *t
			return Presence{InTerritory: true, Territory: &cp, Distance: d}
		}
	}
	return Presence{}
}

// RecordVisit refreshes territories the owner is standing in. VisitCount grows once
// per entry, not per fix. It reports whether p is inside any territory.
func (s *Service) RecordVisit(ownerID string, p geo.GeoPoint, now time.Time) bool {
	o := s.owner(ownerID, false)
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	inAny := false
	for _, t := range o.territories {
		if !geo.IsWithin(p, t.Zone) {
			o.inside[t.ID] = false
			continue
		}
		inAny = true
		t.LastVisitedAt = now
		if !o.inside[t.ID] {
			o.inside[t.ID] = true
			t.VisitCount++
		}
	}
	return inAny
}

// CheckWarnings grades a hostile location against each of the owner's territories.
func (s *Service) CheckWarnings(ownerID string, hostile geo.GeoPoint) []Warning {
	o := s.owner(ownerID, false)
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	var warnings []Warning
	for _, t := range o.territories {
		d := geo.DistanceMeters(hostile, t.Zone.Center)
		sev, ok := severityFor(t, d)
		if !ok {
			continue
		}
		warnings = append(warnings, Warning{Territory: *t, Distance: d, Severity: sev})
	}
	return warnings
}

// Territories returns copies of the owner's territories in creation order.
func (s *Service) Territories(ownerID string) []Territory {
	o := s.owner(ownerID, false)
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return copyTerritories(o.territories)
}

func copyTerritories(ts []*Territory) []Territory {
	out := make([]Territory, 0, len(ts))
	for _, t := range ts {
		out = append(out, *t)
	}
	return out
}

// Rename changes a territory's display name.
func (s *Service) Rename(ownerID, territoryID, name string) (Territory, error) {
	return s.mutate(ownerID, territoryID, func(t *Territory) {
		t.Zone.Name = name
	})
}

// SetIcon changes a territory's icon.
func (s *Service) SetIcon(ownerID, territoryID, icon string) (Territory, error) {
	return s.mutate(ownerID, territoryID, func(t *Territory) {
		t.Icon = icon
	})
}

func (s *Service) mutate(ownerID, territoryID string, fn func(t *Territory)) (Territory, error) {
	o := s.owner(ownerID, false)
	if o == nil {
		return Territory{}, ErrTerritoryNotFound
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, t := range o.territories {
		if t.ID != territoryID {
			continue
		}
		fn(t)
		cp := *t
		s.pub.Publish(event.Event{Type: event.TerritoryUpdated, OwnerID: ownerID, At: s.now(), Data: cp})
		return cp, nil
	}
	return Territory{}, ErrTerritoryNotFound
}

// Remove deletes one of the owner's territories.
func (s *Service) Remove(ownerID, territoryID string) error {
	o := s.owner(ownerID, false)
	if o == nil {
		return ErrTerritoryNotFound
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	idx := slices.IndexFunc(o.territories, func(t *Territory) bool { return t.ID == territoryID })
	if idx < 0 {
		return ErrTerritoryNotFound
	}
	removed := *o.territories[idx]
	o.territories = slices.Delete(o.territories, idx, idx+1)
	delete(o.inside, territoryID)

	slog.Info("territory removed", "owner", ownerID, "territory", territoryID)
	s.pub.Publish(event.Event{Type: event.TerritoryRemoved, OwnerID: ownerID, At: s.now(), Data: removed})
	return nil
}

// Decay drops territories whose last visit is older than DecayTime and, when
// ClaimStaleAfter is set, claims that stopped receiving updates. It returns the
// number of territories removed per owner.
func (s *Service) Decay(now time.Time) map[string]int {
	s.mu.RLock()
	owners := make(map[string]*ownerState, len(s.owners))
	for id, o := range s.owners {
		owners[id] = o
	}
	s.mu.RUnlock()

	removed := make(map[string]int)
	for ownerID, o := range owners {
		if n := s.decayOwner(ownerID, o, now); n > 0 {
			removed[ownerID] = n
		}
	}
	return removed
}

func (s *Service) decayOwner(ownerID string, o *ownerState, now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	var ids []string
	kept := o.territories[:0]
	for _, t := range o.territories {
		if now.Sub(t.LastVisitedAt) > s.cfg.DecayTime {
			ids = append(ids, t.ID)
			delete(o.inside, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	clear(o.territories[len(kept):])
	o.territories = kept

	if len(ids) > 0 {
		slog.Info("territories decayed", "owner", ownerID, "count", len(ids))
		s.pub.Publish(event.Event{
			Type:    event.TerritoriesDecayed,
			OwnerID: ownerID,
			At:      now,
			Data:    DecayReport{Count: len(ids), TerritoryIDs: ids},
		})
	}

	if c := o.claim; c != nil && s.cfg.ClaimStaleAfter > 0 && now.Sub(c.LastUpdateAt) > s.cfg.ClaimStaleAfter {
		o.claim = nil
		s.mu.Lock()
		delete(s.claims, c.ID)
		s.mu.Unlock()

		slog.Info("stale territory claim dropped", "owner", ownerID, "claim", c.ID)
		s.pub.Publish(event.Event{Type: event.ClaimExpired, OwnerID: ownerID, At: now, Data: *c})
	}

	return len(ids)
}

// Snapshot returns the owner's persistable state.
func (s *Service) Snapshot(ownerID string) Snapshot {
	o := s.owner(ownerID, false)
	if o == nil {
		return Snapshot{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{Territories: copyTerritories(o.territories)}
	if o.claim != nil {
		c := *o.claim
		snap.Claim = &c
	}
	return snap
}

// Restore replaces the owner's state with a previously saved snapshot.
func (s *Service) Restore(ownerID string, snap Snapshot) {
	o := s.owner(ownerID, true)
	o.mu.Lock()
	defer o.mu.Unlock()

	o.territories = o.territories[:0]
	for _, t := range snap.Territories {
		cp := t
		cp.OwnerID = ownerID
		o.territories = append(o.territories, &cp)
	}
	clear(o.inside)

	s.mu.Lock()
	if o.claim != nil {
		delete(s.claims, o.claim.ID)
	}
	o.claim = nil
	if snap.Claim != nil {
		c := *snap.Claim
		c.OwnerID = ownerID
		o.claim = &c
		s.claims[c.ID] = ownerID
	}
	s.mu.Unlock()
}

// Start launches the periodic decay sweep. It is a no-op when SweepInterval is 0.
func (s *Service) Start() {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	s.wg.Add(1)
	go s.sweepLoop()
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Decay(s.now())
		}
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
