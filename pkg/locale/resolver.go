// Package locale resolves a zip code or city name to its city/state pair.
package locale

import (
	"fmt"
	"strings"
)

// Place is a resolved locale.
type Place struct {
	City  string `yaml:"city" json:"city"`
	State string `yaml:"state" json:"state"`
	Zip   string `yaml:"zip" json:"zip"`
}

// Resolver looks up places by zip or city. Entries come from the built-in
// table plus any configured extras; configured entries win.
type Resolver struct {
	byZip  map[string]Place
	byCity map[string]Place
}

// builtin covers the deployment areas shipped so far.
var builtin = []Place{
	{City: "Fall River", State: "MA", Zip: "02720"},
	{City: "Fall River", State: "MA", Zip: "02721"},
	{City: "Fall River", State: "MA", Zip: "02723"},
	{City: "Fall River", State: "MA", Zip: "02724"},
	{City: "New Bedford", State: "MA", Zip: "02740"},
	{City: "Somerset", State: "MA", Zip: "02726"},
	{City: "Swansea", State: "MA", Zip: "02777"},
	{City: "Westport", State: "MA", Zip: "02790"},
	{City: "Tiverton", State: "RI", Zip: "02878"},
	{City: "Taunton", State: "MA", Zip: "02780"},
}

// NewResolver builds a resolver from the built-in table plus extras.
func NewResolver(extra []Place) *Resolver {
	r := &Resolver{
		byZip:  make(map[string]Place),
		byCity: make(map[string]Place),
	}
	for _, p := range builtin {
		r.add(p)
	}
	for _, p := range extra {
		r.add(p)
	}
	return r
}

func (r *Resolver) add(p Place) {
	if p.Zip != "" {
		r.byZip[p.Zip] = p
	}
	if p.City != "" {
		r.byCity[strings.ToLower(p.City)] = p
	}
}

// Resolve returns the place for a zip code or city name.
func (r *Resolver) Resolve(zipOrCity string) (Place, error) {
	q := strings.TrimSpace(zipOrCity)
	if q == "" {
		return Place{}, fmt.Errorf("resolve: empty query")
	}
	if p, ok := r.byZip[q]; ok {
		return p, nil
	}
	if p, ok := r.byCity[strings.ToLower(q)]; ok {
		return p, nil
	}
	return Place{}, fmt.Errorf("resolve %q: unknown place", q)
}
