package ambush

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ugaemi/geotag-server/internal/event"
	"github.com/ugaemi/geotag-server/internal/geo"
)

type ownerState struct {
	mu      sync.Mutex
	points  []*Point
	dwell   map[string]map[string]bool // point ID -> hostile ID -> currently inside
	history []Trigger
}

// Service manages ambush points for one game.
type Service struct {
	cfg Config
	pub event.Publisher
	now func() time.Time

	mu     sync.RWMutex
	owners map[string]*ownerState

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an ambush service. Call Start to run the expiry sweeper.
func NewService(cfg Config, pub event.Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = event.Discard
	}
	s := &Service{
		cfg:    cfg,
		pub:    pub,
		now:    time.Now,
		owners: make(map[string]*ownerState),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
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
		o = &ownerState{dwell: make(map[string]map[string]bool)}
		s.owners[ownerID] = o
	}
	return o
}

func liveCount(points []*Point, now time.Time) int {
	n := 0
	for _, p := range points {
		if !p.Expired(now) {
			n++
		}
	}
	return n
}

// resolve applies the configured defaults to opts and rejects overrides outside
// (0, MaxRadius] and (0, MaxTTL].
func (s *Service) resolve(opts Options) (float64, time.Duration, error) {
	maxRadius := s.cfg.MaxRadius
	if maxRadius <= 0 {
		maxRadius = s.cfg.Radius
	}
	maxTTL := s.cfg.MaxTTL
	if maxTTL <= 0 {
		maxTTL = s.cfg.TTL
	}

	radius := s.cfg.Radius
	if opts.Radius != 0 {
		if !(opts.Radius > 0 && opts.Radius <= maxRadius) {
			return 0, 0, ErrInvalidOptions
		}
		radius = opts.Radius
	}
	ttl := s.cfg.TTL
	if opts.TTL != 0 {
		if opts.TTL < 0 || opts.TTL > maxTTL {
			return 0, 0, ErrInvalidOptions
		}
		ttl = opts.TTL
	}
	return radius, ttl, nil
}

// Place drops a trap at location. Expired points do not count against capacity.
func (s *Service) Place(ownerID string, location geo.GeoPoint, opts Options) (Point, error) {
	if !location.Valid() {
		return Point{}, ErrInvalidLocation
	}

	radius, ttl, err := s.resolve(opts)
	if err != nil {
		return Point{}, err
	}

	o := s.owner(ownerID, true)
	o.mu.Lock()
	defer o.mu.Unlock()

	now := s.now()
	if liveCount(o.points, now) >= s.cfg.MaxPointsPerPlayer {
		return Point{}, ErrCapacityReached
	}

	id := uuid.New().String()
	p := &Point{
		ID:      id,
		OwnerID: ownerID,
		Zone: geo.CircularZone{
			ID:           id,
			OwnerID:      ownerID,
			Center:       location,
			RadiusMeters: radius,
			Active:       true,
		},
		Icon:      opts.Icon,
		PlacedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	o.points = append(o.points, p)

	slog.Info("ambush placed", "owner", ownerID, "ambush", id, "expires_at", p.ExpiresAt)
	return *p, nil
}

// CheckCrossing tests a hostile location against the owner's live traps and returns
// the ones that fired. A trap fires when the hostile enters it and stays silent until
// the same hostile has left and come back.
func (s *Service) CheckCrossing(ownerID, hostileID string, hostile geo.GeoPoint) []Point {
	o := s.owner(ownerID, false)
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	now := s.now()
	var fired []Point
	for _, p := range o.points {
		if p.Expired(now) {
			continue
		}

		d := geo.DistanceMeters(hostile, p.Zone.Center)
		inside := d <= p.Zone.RadiusMeters

		dwell := o.dwell[p.ID]
		if !inside {
			delete(dwell, hostileID)
			continue
		}
		if dwell[hostileID] {
			continue
		}
		if dwell == nil {
			dwell = make(map[string]bool)
			o.dwell[p.ID] = dwell
		}
		dwell[hostileID] = true

		p.TriggerCount++
		trig := Trigger{
			PointID:   p.ID,
			OwnerID:   ownerID,
			HostileID: hostileID,
			Location:  hostile,
			Distance:  d,
			At:        now,
		}
		o.history = append(o.history, trig)
		if n := s.cfg.HistorySize; n > 0 && len(o.history) > n {
			o.history = slices.Clone(o.history[len(o.history)-n:])
		}

		slog.Info("ambush triggered", "owner", ownerID, "ambush", p.ID, "hostile", hostileID)
		s.pub.Publish(event.Event{Type: event.AmbushTriggered, OwnerID: ownerID, At: now, Data: trig})
		fired = append(fired, *p)
	}
	return fired
}

// Remove deletes one of the owner's points.
func (s *Service) Remove(ownerID, pointID string) error {
	o := s.owner(ownerID, false)
	if o == nil {
		return ErrPointNotFound
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	idx := slices.IndexFunc(o.points, func(p *Point) bool { return p.ID == pointID })
	if idx < 0 {
		return ErrPointNotFound
	}
	o.points = slices.Delete(o.points, idx, idx+1)
	delete(o.dwell, pointID)

	slog.Info("ambush removed", "owner", ownerID, "ambush", pointID)
	return nil
}

// Points returns the owner's live points.
func (s *Service) Points(ownerID string) []Point {
	o := s.owner(ownerID, false)
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	now := s.now()
	out := make([]Point, 0, len(o.points))
	for _, p := range o.points {
		if !p.Expired(now) {
			out = append(out, *p)
		}
	}
	return out
}

// Remaining returns how many more points the owner may place right now.
func (s *Service) Remaining(ownerID string) int {
	o := s.owner(ownerID, false)
	if o == nil {
		return s.cfg.MaxPointsPerPlayer
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return max(0, s.cfg.MaxPointsPerPlayer-liveCount(o.points, s.now()))
}

// History returns the owner's most recent triggers, oldest first.
func (s *Service) History(ownerID string) []Trigger {
	o := s.owner(ownerID, false)
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.history)
}

// Sweep drops expired points and returns how many were removed.
func (s *Service) Sweep(now time.Time) int {
	s.mu.RLock()
	owners := make(map[string]*ownerState, len(s.owners))
	for id, o := range s.owners {
		owners[id] = o
	}
	s.mu.RUnlock()

	total := 0
	for ownerID, o := range owners {
		total += s.sweepOwner(ownerID, o, now)
	}
	return total
}

func (s *Service) sweepOwner(ownerID string, o *ownerState, now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	var expired []Point
	o.points = slices.DeleteFunc(o.points, func(p *Point) bool {
		if !p.Expired(now) {
			return false
		}
		expired = append(expired, *p)
		delete(o.dwell, p.ID)
		return true
	})

	for _, p := range expired {
		s.pub.Publish(event.Event{Type: event.AmbushExpired, OwnerID: ownerID, At: now, Data: p})
	}
	if len(expired) > 0 {
		slog.Debug("ambush points expired", "owner", ownerID, "count", len(expired))
	}
	return len(expired)
}

// Restore replaces the owner's points with saved ones. Dwell state starts empty.
func (s *Service) Restore(ownerID string, points []Point) {
	o := s.owner(ownerID, true)
	o.mu.Lock()
	defer o.mu.Unlock()

	o.points = o.points[:0]
	for _, p := range points {
		cp := p
		cp.OwnerID = ownerID
		o.points = append(o.points, &cp)
	}
	clear(o.dwell)
}

// Start launches the periodic expiry sweep. It is a no-op when SweepInterval is 0.
func (s *Service) Start() {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep(s.now())
			}
		}
	}()
}

// Close stops the sweeper. It is safe to call more than once.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
