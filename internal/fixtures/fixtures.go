// Package fixtures loads the demo city dataset (buildings, routes, depots,
// POIs, highways, regions) from a JSON file on disk into a geostore
// Dataset, generalizing the teacher's model.LoadRouteFromReader (a single
// route file) to the fuller spatial dataset the geospatial service and the
// spawners both need.
package fixtures

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jwmdev/transitspawn/internal/geostore"
)

// DefaultPath is where the seeding CLI and the unified facade look for the
// demo dataset absent an explicit override (spec §9 fixtures are plain
// JSON describing the demo city).
const DefaultPath = "data/city.json"

// Load reads path and decodes it into a geostore.Dataset.
func Load(path string) (geostore.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return geostore.Dataset{}, fmt.Errorf("open fixture %s: %w", path, err)
	}
	defer f.Close()

	var ds geostore.Dataset
	dec := json.NewDecoder(f)
	if err := dec.Decode(&ds); err != nil {
		return geostore.Dataset{}, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return ds, nil
}
