package routing

import (
	"fmt"
	"sort"

	"github.com/kilianp07/agv/core/model"
)

// Kind tags what a map location is used for.
type Kind int

const (
	KindPickup Kind = iota
	KindDropoff
	KindCharging
	KindDepot
)

func (k Kind) String() string {
	switch k {
	case KindPickup:
		return "pickup"
	case KindDropoff:
		return "dropoff"
	case KindCharging:
		return "charging"
	case KindDepot:
		return "depot"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindPickup, KindDropoff, KindCharging, KindDepot} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown location kind %q", s)
}

// Map exposes the location pools of the facility. It is read-only to the
// core.
type Map interface {
	PickupLocations() []model.Location
	DropoffLocations() []model.Location
	ChargingLocations() []model.Location
	Lookup(id string) (model.Location, bool)
}

// Pools is the in-memory Map built from configuration.
type Pools struct {
	pickup   []model.Location
	dropoff  []model.Location
	charging []model.Location
	depot    []model.Location
	byID     map[string]model.Location
}

// NewPools indexes the configured locations by kind. Location ids must be
// unique.
func NewPools(locs []LocationConfig) (*Pools, error) {
	p := &Pools{byID: make(map[string]model.Location, len(locs))}
	for _, lc := range locs {
		if lc.ID == "" {
			return nil, fmt.Errorf("location id is required")
		}
		if _, dup := p.byID[lc.ID]; dup {
			return nil, fmt.Errorf("duplicate location %s", lc.ID)
		}
		k, err := ParseKind(lc.Kind)
		if err != nil {
			return nil, err
		}
		loc := model.Location{ID: lc.ID, X: lc.X, Y: lc.Y}
		p.byID[lc.ID] = loc
		switch k {
		case KindPickup:
			p.pickup = append(p.pickup, loc)
		case KindDropoff:
			p.dropoff = append(p.dropoff, loc)
		case KindCharging:
			p.charging = append(p.charging, loc)
		case KindDepot:
			p.depot = append(p.depot, loc)
		}
	}
	for _, s := range [][]model.Location{p.pickup, p.dropoff, p.charging, p.depot} {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}
	return p, nil
}

func (p *Pools) PickupLocations() []model.Location   { return append([]model.Location(nil), p.pickup...) }
func (p *Pools) DropoffLocations() []model.Location  { return append([]model.Location(nil), p.dropoff...) }
func (p *Pools) ChargingLocations() []model.Location { return append([]model.Location(nil), p.charging...) }
func (p *Pools) DepotLocations() []model.Location    { return append([]model.Location(nil), p.depot...) }

// Lookup returns the location with the given id.
func (p *Pools) Lookup(id string) (model.Location, bool) {
	l, ok := p.byID[id]
	return l, ok
}
