package inference

import (
	"encoding/json"
	"math"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kernel types understood by GaussianProcess.
const (
	KernelRBF               = "rbf"
	KernelRationalQuadratic = "rational_quadratic"
)

// Kernel is a stationary covariance function scaled by a constant. Noise only applies to the
// training covariance and therefore does not appear at prediction time.
type Kernel struct {
	Type        string  `json:"type"`
	Variance    float64 `json:"variance"`
	LengthScale float64 `json:"length_scale"`
	// Alpha is the scale mixture parameter of the rational quadratic kernel.
	Alpha float64 `json:"alpha"`
	Noise float64 `json:"noise"`
}

// Validate ensures all parts of the kernel are valid.
func (k *Kernel) Validate(path string) error {
	switch k.Type {
	case KernelRBF:
	case KernelRationalQuadratic:
		if !(k.Alpha > 0) {
			return errors.Errorf("%s: rational quadratic \"alpha\" must be positive", path)
		}
	default:
		return errors.Errorf("%s: unsupported kernel type %q", path, k.Type)
	}
	if !(k.LengthScale > 0) {
		return errors.Errorf("%s: \"length_scale\" must be positive", path)
	}
	if !(k.Variance > 0) {
		return errors.Errorf("%s: \"variance\" must be positive", path)
	}
	return nil
}

// Eval returns the covariance of two points.
func (k *Kernel) Eval(a, b []float64) float64 {
	var sq float64
	for i := range a {
		d := (a[i] - b[i]) / k.LengthScale
		sq += d * d
	}
	switch k.Type {
	case KernelRationalQuadratic:
		return k.Variance * math.Pow(1+sq/(2*k.Alpha), -k.Alpha)
	default:
		return k.Variance * math.Exp(-sq/2)
	}
}

// GaussianProcess is the posterior mean of a trained Gaussian process regressor: the training
// inputs and the dual coefficients alpha = K^-1 y computed at training time.
type GaussianProcess struct {
	kernel Kernel
	xTrain *mat.Dense
	alpha  *mat.VecDense
	yMean  float64
	yStd   float64
}

// gaussianProcessFile is the JSON export of a trained regressor.
type gaussianProcessFile struct {
	Kernel     Kernel      `json:"kernel"`
	XTrain     [][]float64 `json:"x_train"`
	Alpha      []float64   `json:"alpha"`
	YTrainMean float64     `json:"y_train_mean"`
	YTrainStd  float64     `json:"y_train_std"`
}

// NewGaussianProcess returns a regressor over the rows of xTrain.
func NewGaussianProcess(kernel Kernel, xTrain [][]float64, alpha []float64, yMean, yStd float64) (*GaussianProcess, error) {
	if err := kernel.Validate("kernel"); err != nil {
		return nil, err
	}
	if len(xTrain) == 0 {
		return nil, errors.New("no training inputs")
	}
	if len(alpha) != len(xTrain) {
		return nil, errors.Errorf("have %d dual coefficients for %d training inputs", len(alpha), len(xTrain))
	}
	dims := len(xTrain[0])
	if dims == 0 {
		return nil, errors.New("training inputs have no dimensions")
	}
	data := make([]float64, 0, len(xTrain)*dims)
	for i, row := range xTrain {
		if len(row) != dims {
			return nil, errors.Errorf("training input %d has %d dimensions, expected %d", i, len(row), dims)
		}
		data = append(data, row...)
	}
	if yStd == 0 {
		yStd = 1
	}
	return &GaussianProcess{
		kernel: kernel,
		xTrain: mat.NewDense(len(xTrain), dims, data),
		alpha:  mat.NewVecDense(len(alpha), append([]float64(nil), alpha...)),
		yMean:  yMean,
		yStd:   yStd,
	}, nil
}

// ReadGaussianProcess loads a regressor exported as JSON.
func ReadGaussianProcess(filename string) (*GaussianProcess, error) {
	//nolint:gosec
	md, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var file gaussianProcessFile
	if err := json.Unmarshal(md, &file); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", filename)
	}
	gp, err := NewGaussianProcess(file.Kernel, file.XTrain, file.Alpha, file.YTrainMean, file.YTrainStd)
	return gp, errors.Wrapf(err, "invalid model %s", filename)
}

// Dims is the number of input dimensions.
func (gp *GaussianProcess) Dims() int {
	_, c := gp.xTrain.Dims()
	return c
}

// Predict returns the posterior mean at x.
func (gp *GaussianProcess) Predict(x []float64) (float64, error) {
	rows, cols := gp.xTrain.Dims()
	if len(x) != cols {
		return 0, errors.Errorf("input has %d dimensions, model expects %d", len(x), cols)
	}
	k := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		k.SetVec(i, gp.kernel.Eval(gp.xTrain.RawRowView(i), x))
	}
	return mat.Dot(k, gp.alpha)*gp.yStd + gp.yMean, nil
}
