package inference

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/navbench/corridor"
)

// FirstPolygonCount is the polygon count served by the first model of a model directory.
const FirstPolygonCount = 2

// ErrNoModel is returned when no model serves a feature's polygon count.
var ErrNoModel = errors.New("no model for polygon count")

// Regressor predicts a value from an input vector.
type Regressor interface {
	Predict(x []float64) (float64, error)
}

// ModelSet holds one regressor per corridor polygon count.
type ModelSet map[int]Regressor

// LoadModelDir loads every JSON model file in dir. Sorted by file name, the first model serves
// features with FirstPolygonCount polygons, the next one more polygon and so on.
func LoadModelDir(dir string) (ModelSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list models")
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, errors.Errorf("no models found in %s", dir)
	}
	sort.Strings(names)

	models := ModelSet{}
	for i, name := range names {
		gp, err := ReadGaussianProcess(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if gp.Dims() != 1 {
			return nil, errors.Errorf("model %s takes %d inputs, expected 1", name, gp.Dims())
		}
		models[FirstPolygonCount+i] = gp
	}
	return models, nil
}

// Predict runs the model for the feature's polygon count on its time to intersect.
func (ms ModelSet) Predict(f corridor.Feature) (float64, error) {
	model, ok := ms[f.PolygonCount]
	if !ok {
		return 0, errors.Wrapf(ErrNoModel, "%d", f.PolygonCount)
	}
	return model.Predict([]float64{f.TimeToIntersect})
}

// PolygonCounts returns the served polygon counts in ascending order.
func (ms ModelSet) PolygonCounts() []int {
	counts := lo.Keys(ms)
	sort.Ints(counts)
	return counts
}
