package economy

import (
	"fmt"
	"sort"
	"strings"
)

// Shape is the physical layout of the source table.
type Shape string

const (
	ShapeWide Shape = "wide"
	ShapeLong Shape = "long"
)

// ParseShape defaults to ShapeWide for an empty value.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ShapeWide):
		return ShapeWide, nil
	case string(ShapeLong):
		return ShapeLong, nil
	}
	return "", fmt.Errorf("unknown table shape %q", s)
}

// InflowSources are the logical sources that grant currency, in column order.
var InflowSources = []string{
	"rewards_race",
	"rewards_store",
	"rewards_rolling_offer_collect",
	"rewards_board_task",
	"rewards_harvest_collect",
	"rewards_missions_total",
	"rewards_recipes",
	"rewards_flowers",
	"rewards_rewarded_video",
	"rewards_disco",
	"rewards_timed_task",
	"rewards_sell_board_item",
	"rewards_mass_compensation",
	"rewards_missions_task",
	"rewards_album_set_completion",
	"rewards_self_collectable",
	"rewards_eoc",
	"rewards_frenzy_non_jackpot",
}

// OutflowSources are the logical sources that spend currency.
var OutflowSources = []string{
	"generation",
	"click_bubble_purchase",
}

// Default paid-source sets. The wide table counts disco purchases as paid,
// the per-player table does not.
var (
	PaidSourcesWide = []string{"rewards_store", "rewards_rolling_offer_collect", "rewards_disco"}
	PaidSourcesLong = []string{"rewards_store", "rewards_rolling_offer_collect"}
)

// Source is one entry of the source table.
type Source struct {
	Name      string
	Direction Direction
}

// Catalog maps logical sources to their direction and paid/free classification.
// A Catalog is read-only after construction.
type Catalog struct {
	sources    []Source
	directions map[string]Direction
	paid       map[string]bool
}

// NewCatalog builds a catalog over the known sources with the given paid inflow sources.
func NewCatalog(paid []string) *Catalog {
	c := &Catalog{
		directions: make(map[string]Direction, len(InflowSources)+len(OutflowSources)),
		paid:       make(map[string]bool, len(paid)),
	}
	for _, name := range InflowSources {
		c.add(name, Inflow)
	}
	for _, name := range OutflowSources {
		c.add(name, Outflow)
	}
	for _, name := range paid {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c.paid[name] = true
	}
	return c
}

// DefaultCatalog returns the catalog matching the table shape's paid-source set.
func DefaultCatalog(shape Shape) *Catalog {
	if shape == ShapeLong {
		return NewCatalog(PaidSourcesLong)
	}
	return NewCatalog(PaidSourcesWide)
}

func (c *Catalog) add(name string, dir Direction) {
	if _, ok := c.directions[name]; ok {
		return
	}
	c.directions[name] = dir
	c.sources = append(c.sources, Source{Name: name, Direction: dir})
}

// Sources returns every known source in column order.
func (c *Catalog) Sources() []Source {
	return c.sources
}

// Direction looks up the direction of a known source.
func (c *Catalog) Direction(source string) (Direction, bool) {
	d, ok := c.directions[source]
	return d, ok
}

// IsPaid reports whether an inflow source is classified as paid.
func (c *Catalog) IsPaid(source string) bool {
	return c.paid[source]
}

// PaidSources returns the paid classification in sorted order.
func (c *Catalog) PaidSources() []string {
	out := make([]string, 0, len(c.paid))
	for name := range c.paid {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FreeInflowSources lists the inflow sources that are not paid, in column order.
func (c *Catalog) FreeInflowSources() []string {
	var out []string
	for _, s := range c.sources {
		if s.Direction == Inflow && !c.paid[s.Name] {
			out = append(out, s.Name)
		}
	}
	return out
}

// SumColumn is the wide-table column holding a source's summed amount.
func SumColumn(s Source) string {
	return fmt.Sprintf("%s_%s_sum_value", s.Name, s.Direction)
}

// CountColumn is the wide-table column holding a source's event count.
func CountColumn(s Source) string {
	return fmt.Sprintf("%s_%s_cnt", s.Name, s.Direction)
}
