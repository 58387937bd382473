package barn

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"go.viam.com/utils"

	"go.viam.com/navbench/spatialmath"
)

// PathFileName returns the name of the path file for a BARN world.
func PathFileName(worldIdx int) string {
	return fmt.Sprintf("path_%d.npy", worldIdx)
}

// PathFilePath returns the location of a world's path file below a worlds directory.
func PathFilePath(worldsDir string, worldIdx int) string {
	return filepath.Join(worldsDir, "BARN", "path_files", PathFileName(worldIdx))
}

// ReadPathFile reads an (N, 2) array of grid coordinates from a numpy file.
func ReadPathFile(filename string) ([]r2.Point, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open path file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read numpy header of %s", filename)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 || shape[1] != 2 {
		return nil, errors.Errorf("path file %s has shape %v, expected (N, 2)", filename, shape)
	}
	if r.Header.Descr.Fortran {
		return nil, errors.Errorf("path file %s is fortran ordered", filename)
	}

	var flat []float64
	switch r.Header.Descr.Type {
	case "<i8":
		var data []int64
		if err := r.Read(&data); err != nil {
			return nil, errors.Wrap(err, "unable to read path data")
		}
		for _, v := range data {
			flat = append(flat, float64(v))
		}
	case "<i4":
		var data []int32
		if err := r.Read(&data); err != nil {
			return nil, errors.Wrap(err, "unable to read path data")
		}
		for _, v := range data {
			flat = append(flat, float64(v))
		}
	case "<f8":
		if err := r.Read(&flat); err != nil {
			return nil, errors.Wrap(err, "unable to read path data")
		}
	default:
		return nil, errors.Errorf("path file %s has unsupported dtype %q", filename, r.Header.Descr.Type)
	}

	points := make([]r2.Point, 0, shape[0])
	for i := 0; i+1 < len(flat); i += 2 {
		points = append(points, r2.Point{X: flat[i], Y: flat[i+1]})
	}
	return points, nil
}

// Path is the reference path of an episode in world coordinates: the initial position, the
// mapped grid waypoints and the goal.
type Path []r2.Point

// NewPath builds the reference path from grid waypoints.
func NewPath(start r2.Point, grid []r2.Point, goal r2.Point) Path {
	path := make(Path, 0, len(grid)+2)
	path = append(path, start)
	for _, p := range grid {
		path = append(path, PathCoordToWorld(p.X, p.Y))
	}
	return append(path, goal)
}

// Length is the sum of the distances between consecutive points.
func (p Path) Length() float64 {
	var length float64
	for i := 1; i < len(p); i++ {
		length += spatialmath.Distance(p[i-1], p[i])
	}
	return length
}

// LoadPath reads the path file of worldIdx below worldsDir and builds its reference path.
func LoadPath(worldsDir string, worldIdx int, start, goal r2.Point) (Path, error) {
	grid, err := ReadPathFile(PathFilePath(worldsDir, worldIdx))
	if err != nil {
		return nil, err
	}
	return NewPath(start, grid, goal), nil
}
