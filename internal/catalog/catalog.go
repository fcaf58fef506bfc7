package catalog

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"qcping/internal/inventory"
	"qcping/internal/model"
)

// ErrNoBindingsFound is returned by Build when no stream ends up configured.
var ErrNoBindingsFound = errors.New("no default binding found")

// DefaultOrientation is appended to 2-character detection stream codes.
const DefaultOrientation = "Z"

// Catalog is the ordered stream table. Iteration follows first insertion.
type Catalog struct {
	order   []string
	entries map[string]*model.StreamEntry
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]*model.StreamEntry)}
}

// Put inserts or replaces an entry. A replaced entry keeps its original position.
func (c *Catalog) Put(entry model.StreamEntry) {
	key := entry.ID.String()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	e := entry
	c.entries[key] = &e
}

// Get returns the entry for a dotted stream identifier.
func (c *Catalog) Get(id string) (*model.StreamEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// Entries returns all entries in catalog order.
func (c *Catalog) Entries() []*model.StreamEntry {
	out := make([]*model.StreamEntry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// WithPrefix returns the entries whose dotted identifier starts with prefix.
func (c *Catalog) WithPrefix(prefix string) []*model.StreamEntry {
	var out []*model.StreamEntry
	for _, key := range c.order {
		if strings.HasPrefix(key, prefix) {
			out = append(out, c.entries[key])
		}
	}
	return out
}

// Configured counts configured entries.
func (c *Catalog) Configured() int {
	n := 0
	for _, e := range c.entries {
		if e.Configured {
			n++
		}
	}
	return n
}

// Addressed returns copies of every entry with an assigned address, in catalog order.
func (c *Catalog) Addressed() []model.StreamEntry {
	var out []model.StreamEntry
	for _, key := range c.order {
		e := c.entries[key]
		if e.Address == nil {
			continue
		}
		cp := *e
		addr := *e.Address
		cp.Address = &addr
		out = append(out, cp)
	}
	return out
}

// Snapshot returns copies of all entries in catalog order.
func (c *Catalog) Snapshot() []model.StreamEntry {
	out := make([]model.StreamEntry, 0, len(c.order))
	for _, key := range c.order {
		cp := *c.entries[key]
		if cp.Address != nil {
			addr := *cp.Address
			cp.Address = &addr
		}
		out = append(out, cp)
	}
	return out
}

// DetectionStreamID builds the identifier a binding points at, expanding a
// 2-character stream code with the vertical orientation.
func DetectionStreamID(b inventory.Binding) model.StreamID {
	code := b.StreamCode
	if len(code) == 2 {
		code += DefaultOrientation
	}
	return model.StreamID{Network: b.Network, Station: b.Station, Location: b.LocationCode, Channel: code}
}

// Options controls which bindings Build honours.
type Options struct {
	// Module is the config module holding station bindings, e.g. "trunk".
	Module string
	// Application selects the station setup; the global setup is the fallback.
	Application string
	Now         time.Time
	Log         *zap.Logger
}

// Build collects every stream valid at opts.Now under valid ancestors and
// marks the streams referenced by the configured bindings. Bindings that cannot
// be resolved are logged and skipped.
func Build(inv *inventory.Inventory, cfg *inventory.Config, opts Options) (*Catalog, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	c := New()

	log.Debug("building station dictionary")
	if inv != nil {
		for _, net := range inv.Networks {
			if !inventory.MatchEpoch(net, now) {
				continue
			}
			for _, sta := range net.Stations {
				if !inventory.MatchEpoch(sta, now) {
					continue
				}
				for _, loc := range sta.SensorLocations {
					if !inventory.MatchEpoch(loc, now) {
						continue
					}
					for _, cha := range loc.Streams {
						if !inventory.MatchEpoch(cha, now) {
							continue
						}
						id := model.StreamID{Network: net.Code, Station: sta.Code, Location: loc.Code, Channel: cha.Code}
						log.Debug("found stream", zap.Stringer("stream", id))
						c.Put(model.StreamEntry{ID: id})
					}
				}
			}
		}
	}
	log.Info("read streams from inventory", zap.Int("count", c.Len()))

	bindings, warnings := cfg.Bindings(opts.Module, opts.Application)
	if len(bindings) > 0 || len(warnings) > 0 {
		log.Info("loading streams using detecLocid and detecStream", zap.String("module", opts.Module))
	}
	for _, w := range warnings {
		log.Warn(w.Error())
	}

	configured := 0
	for _, b := range bindings {
		id := DetectionStreamID(b)
		entry, ok := c.Get(id.String())
		if !ok {
			log.Debug("binding has no inventory stream", zap.Stringer("stream", id))
			continue
		}
		entry.Configured = true
		configured++
		log.Debug("configured stream", zap.Stringer("stream", id))
	}

	if configured == 0 {
		log.Error("no default binding found")
		return nil, ErrNoBindingsFound
	}
	log.Info("found bindings", zap.Int("count", configured))
	return c, nil
}
