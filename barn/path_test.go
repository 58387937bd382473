package barn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/sbinet/npyio"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestPathLength(t *testing.T) {
	straight := Path{{X: -2, Y: 3}, {X: 6.5, Y: 3}}
	test.That(t, straight.Length(), test.ShouldAlmostEqual, 8.5)

	detour := Path{{X: -2, Y: 3}, {X: -2, Y: 4}, {X: 6.5, Y: 4}, {X: 6.5, Y: 3}}
	test.That(t, detour.Length(), test.ShouldAlmostEqual, 10.5)

	test.That(t, Path{{X: 1, Y: 1}}.Length(), test.ShouldEqual, 0.0)
	test.That(t, Path(nil).Length(), test.ShouldEqual, 0.0)
}

func TestNewPath(t *testing.T) {
	start := r2.Point{X: -2, Y: 3}
	goal := r2.Point{X: 6.5, Y: 3}
	path := NewPath(start, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}, goal)
	test.That(t, len(path), test.ShouldEqual, 4)
	test.That(t, path[0], test.ShouldResemble, start)
	test.That(t, path[1], test.ShouldResemble, PathCoordToWorld(0, 0))
	test.That(t, path[2], test.ShouldResemble, PathCoordToWorld(1, 0))
	test.That(t, path[3], test.ShouldResemble, goal)
}

// writeInt64Npy writes an (N, 2) little endian int64 array in numpy format version 1.0.
func writeInt64Npy(t *testing.T, filename string, rows [][2]int64) {
	t.Helper()
	header := fmt.Sprintf("{'descr': '<i8', 'fortran_order': False, 'shape': (%d, 2), }", len(rows))
	// magic (6) + version (2) + header length (2) + header + newline, padded to 64 bytes
	for (10+len(header)+1)%64 != 0 {
		header += " "
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	test.That(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))), test.ShouldBeNil)
	buf.WriteString(header)
	for _, row := range rows {
		test.That(t, binary.Write(&buf, binary.LittleEndian, row[:]), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(filename, buf.Bytes(), 0o600), test.ShouldBeNil)
}

func TestReadPathFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("int64", func(t *testing.T) {
		filename := filepath.Join(dir, "ints.npy")
		writeInt64Npy(t, filename, [][2]int64{{0, 0}, {3, 4}, {10, 2}})

		points, err := ReadPathFile(filename)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, points, test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 10, Y: 2}})
	})

	t.Run("float64", func(t *testing.T) {
		filename := filepath.Join(dir, "floats.npy")
		f, err := os.Create(filename)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, npyio.Write(f, mat.NewDense(2, 2, []float64{1.5, 2, 3, 4.25})), test.ShouldBeNil)
		test.That(t, f.Close(), test.ShouldBeNil)

		points, err := ReadPathFile(filename)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, points, test.ShouldResemble, []r2.Point{{X: 1.5, Y: 2}, {X: 3, Y: 4.25}})
	})

	t.Run("wrong shape", func(t *testing.T) {
		filename := filepath.Join(dir, "flat.npy")
		f, err := os.Create(filename)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, npyio.Write(f, []float64{1, 2, 3}), test.ShouldBeNil)
		test.That(t, f.Close(), test.ShouldBeNil)

		_, err = ReadPathFile(filename)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "expected (N, 2)")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadPathFile(filepath.Join(dir, "nope.npy"))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestLoadPath(t *testing.T) {
	worldsDir := t.TempDir()
	test.That(t, os.MkdirAll(filepath.Join(worldsDir, "BARN", "path_files"), 0o700), test.ShouldBeNil)
	writeInt64Npy(t, PathFilePath(worldsDir, 7), [][2]int64{{30, 0}, {30, 10}})

	start := r2.Point{X: -2, Y: 3}
	goal := r2.Point{X: 6.5, Y: 3}
	path, err := LoadPath(worldsDir, 7, start, goal)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path), test.ShouldEqual, 4)
	test.That(t, path[1].X, test.ShouldAlmostEqual, 30*2*CellRadius+rowShift)
	test.That(t, path[2].Y, test.ShouldAlmostEqual, 10*2*CellRadius+columnShift)

	expected := start.Sub(path[1]).Norm() + path[1].Sub(path[2]).Norm() + path[2].Sub(goal).Norm()
	test.That(t, path.Length(), test.ShouldAlmostEqual, expected)
	test.That(t, filepath.Base(PathFilePath(worldsDir, 7)), test.ShouldEqual, "path_7.npy")
}
