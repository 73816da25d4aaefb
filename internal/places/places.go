// Package places holds the recommended sights catalog and its persona ranking.
package places

import (
	"context"
	"errors"
	"log"
	"slices"
	"sort"

	"github.com/samber/lo"

	"itinerary-planner/internal/distance"
	"itinerary-planner/internal/models"
)

// Travel personas a recommendation can be tagged with
const (
	PersonaFreeSpirit        = "Free Spirit"
	PersonaDeepExplorer      = "Deep Explorer"
	PersonaEfficiencyPlanner = "Efficiency Planner"
	PersonaCreativeTraveler  = "Creative Traveler"
)

// Personas lists the known personas in display order
var Personas = []string{PersonaFreeSpirit, PersonaDeepExplorer, PersonaEfficiencyPlanner, PersonaCreativeTraveler}

// ErrNotFound is returned for an unknown place id
var ErrNotFound = errors.New("place not found")

const imageParams = "?auto=format&fit=crop&q=80&w=300&h=200"

var catalog = []models.Place{
	{ID: "1", Name: "Palace Museum", Category: "History", Lat: 39.9163, Lng: 116.3972, Rating: 4.9, Price: 60,
		Image: "https://images.unsplash.com/photo-1599571234909-29ed5d1321d6" + imageParams,
		Tags:  []string{PersonaDeepExplorer, PersonaEfficiencyPlanner}},
	{ID: "2", Name: "Universal Beijing Resort", Category: "Entertainment", Lat: 39.8595, Lng: 116.6661, Rating: 4.7, Price: 418,
		Image: "https://images.unsplash.com/photo-1533618840-7e30d66c1524" + imageParams,
		Tags:  []string{PersonaFreeSpirit, PersonaCreativeTraveler}},
	{ID: "3", Name: "Summer Palace", Category: "Nature", Lat: 39.9993, Lng: 116.2753, Rating: 4.8, Price: 30,
		Image: "https://images.unsplash.com/photo-1546153673-a63e9f802148" + imageParams,
		Tags:  []string{PersonaFreeSpirit, PersonaDeepExplorer}},
	{ID: "4", Name: "798 Art Zone", Category: "Art", Lat: 39.9839, Lng: 116.4950, Rating: 4.6, Price: 0,
		Image: "https://images.unsplash.com/photo-1550951298-5c7b95a66b21" + imageParams,
		Tags:  []string{PersonaCreativeTraveler, PersonaFreeSpirit}},
	{ID: "5", Name: "Temple of Heaven", Category: "History", Lat: 39.8822, Lng: 116.4066, Rating: 4.7, Price: 15,
		Image: "https://images.unsplash.com/photo-1598418037309-84d72836214f" + imageParams,
		Tags:  []string{PersonaDeepExplorer}},
	{ID: "6", Name: "Taikoo Li Sanlitun", Category: "Shopping", Lat: 39.9360, Lng: 116.4549, Rating: 4.5, Price: 0,
		Image: "https://images.unsplash.com/photo-1555406059-42b7858c440a" + imageParams,
		Tags:  []string{PersonaEfficiencyPlanner, PersonaFreeSpirit}},
	{ID: "7", Name: "Mutianyu Great Wall", Category: "Adventure", Lat: 40.4320, Lng: 116.5629, Rating: 4.9, Price: 45,
		Image: "https://images.unsplash.com/photo-1508804185872-d7badad00f7d" + imageParams,
		Tags:  []string{PersonaDeepExplorer, PersonaCreativeTraveler}},
}

// Catalog returns a copy of every place
func Catalog() []models.Place {
	return lo.Map(catalog, func(p models.Place, _ int) models.Place {
		p.Tags = slices.Clone(p.Tags)
		return p
	})
}

// Find looks a place up by id
func Find(id string) (models.Place, error) {
	p, ok := lo.Find(Catalog(), func(p models.Place) bool { return p.ID == id })
	if !ok {
		return models.Place{}, ErrNotFound
	}
	return p, nil
}

// Recommendation is a ranked place
type Recommendation struct {
	models.Place
	PersonaMatch  bool     `json:"persona_match"`
	TravelSeconds *float64 `json:"travel_seconds,omitempty"`
}

// Recommender ranks the catalog. distances may be nil.
type Recommender struct {
	distances distance.DistanceCalculator
}

func NewRecommender(distances distance.DistanceCalculator) *Recommender {
	return &Recommender{distances: distances}
}

// Rank orders places matching persona first. When near is given the places
// within each group are ordered by travel time from it, unreachable ones
// last; otherwise catalog order is kept. A failed travel time lookup falls
// back to persona order.
func (r *Recommender) Rank(ctx context.Context, persona string, near *models.Coordinates) []Recommendation {
	recs := lo.Map(Catalog(), func(p models.Place, _ int) Recommendation {
		return Recommendation{Place: p, PersonaMatch: lo.Contains(p.Tags, persona)}
	})

	if near != nil && r.distances != nil {
		dests := lo.Map(recs, func(rec Recommendation, _ int) models.Coordinates { return rec.GetCoords() })
		results, err := r.distances.GetDistancesFromPoint(ctx, *near, dests)
		if err != nil {
			log.Printf("[PLACES] Travel time lookup failed, ranking by persona only: err=%v", err)
		} else {
			for i := range recs {
				if results[i].Unreachable {
					continue
				}
				secs := results[i].DurationSecs
				recs[i].TravelSeconds = &secs
			}
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.PersonaMatch != b.PersonaMatch {
			return a.PersonaMatch
		}
		if a.TravelSeconds == nil || b.TravelSeconds == nil {
			// unreachable places go last within their group
			return a.TravelSeconds != nil && b.TravelSeconds == nil
		}
		return *a.TravelSeconds < *b.TravelSeconds
	})
	return recs
}
