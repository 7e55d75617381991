package artifact

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

var (
	ErrArtifactLoad = errors.New("artifact load failed")
	ErrPrediction   = errors.New("prediction failed")
)

const (
	KindDecisionTree    = "decision_tree"
	KindLinear          = "linear"
	KindNearestCentroid = "nearest_centroid"

	TaskClassification = "classification"
	TaskRegression     = "regression"
)

// Document is the serialized form of an artifact
type Document struct {
	Kind      string                   `json:"kind" yaml:"kind" toml:"kind"`
	Task      string                   `json:"task,omitempty" yaml:"task,omitempty" toml:"task,omitempty"`
	NFeatures int                      `json:"n_features" yaml:"n_features" toml:"n_features"`
	Classes   []string                 `json:"classes,omitempty" yaml:"classes,omitempty" toml:"classes,omitempty"`
	Features  []types.ServiceParameter `json:"features,omitempty" yaml:"features,omitempty" toml:"features,omitempty"`
	Tree      *TreeSpec                `json:"tree,omitempty" yaml:"tree,omitempty" toml:"tree,omitempty"`
	Linear    *LinearSpec              `json:"linear,omitempty" yaml:"linear,omitempty" toml:"linear,omitempty"`
	Centroid  *CentroidSpec            `json:"centroid,omitempty" yaml:"centroid,omitempty" toml:"centroid,omitempty"`
}

// TreeSpec holds a binary decision tree as parallel node arrays.
// Node i is a leaf when ChildrenLeft[i] is -1; otherwise samples with
// x[Feature[i]] <= Threshold[i] go left.
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left" yaml:"children_left" toml:"children_left"`
	ChildrenRight []int       `json:"children_right" yaml:"children_right" toml:"children_right"`
	Feature       []int       `json:"feature" yaml:"feature" toml:"feature"`
	Threshold     []float64   `json:"threshold" yaml:"threshold" toml:"threshold"`
	Value         [][]float64 `json:"value" yaml:"value" toml:"value"`
}

// LinearSpec holds one weight row per output
type LinearSpec struct {
	Coef      [][]float64 `json:"coef" yaml:"coef" toml:"coef"`
	Intercept []float64   `json:"intercept" yaml:"intercept" toml:"intercept"`
}

// CentroidSpec holds one centroid per class
type CentroidSpec struct {
	Centroids [][]float64 `json:"centroids" yaml:"centroids" toml:"centroids"`
}

// Prediction is the raw result of a model
type Prediction struct {
	ClassID    int
	Value      float64
	Regression bool
}

// Model predicts from an ordered feature vector
type Model interface {
	NumFeatures() int
	Predict(x []float64) (Prediction, error)
}

// Artifact is a compiled model with its class labels and, when the document
// declares them, the named inputs it expects in order
type Artifact struct {
	Model    Model
	Classes  []string
	Features []types.ServiceParameter
	Task     string
}

// Predict runs the model and shapes its answer
func (a *Artifact) Predict(x []float64) (map[string]interface{}, error) {
	if want := a.Model.NumFeatures(); len(x) != want {
		return nil, fmt.Errorf("%w: X has %d features, but model expects %d", ErrPrediction, len(x), want)
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: feature %d is not a finite number", ErrPrediction, i)
		}
	}

	p, err := a.Model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}

	if p.Regression {
		return map[string]interface{}{"predicted-value": p.Value}, nil
	}
	out := map[string]interface{}{"predicted-class-id": p.ClassID}
	if p.ClassID >= 0 && p.ClassID < len(a.Classes) {
		out["predicted-class-name"] = a.Classes[p.ClassID]
	}
	return out, nil
}

// Compile validates doc and builds its model
func Compile(doc Document) (*Artifact, error) {
	if doc.NFeatures <= 0 {
		return nil, fmt.Errorf("%w: n_features must be positive", ErrArtifactLoad)
	}

	task := doc.Task
	if task == "" {
		task = TaskClassification
	}
	if task != TaskClassification && task != TaskRegression {
		return nil, fmt.Errorf("%w: unknown task %q", ErrArtifactLoad, doc.Task)
	}
	regression := task == TaskRegression

	var (
		model Model
		err   error
	)
	switch doc.Kind {
	case KindDecisionTree:
		model, err = newTree(doc.Tree, doc.NFeatures, regression)
	case KindLinear:
		model, err = newLinear(doc.Linear, doc.NFeatures, regression)
	case KindNearestCentroid:
		if regression {
			return nil, fmt.Errorf("%w: nearest_centroid supports classification only", ErrArtifactLoad)
		}
		model, err = newCentroid(doc.Centroid, doc.NFeatures)
	default:
		return nil, fmt.Errorf("%w: unknown model kind %q", ErrArtifactLoad, doc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactLoad, doc.Kind, err)
	}

	return &Artifact{Model: model, Classes: doc.Classes, Features: doc.Features, Task: task}, nil
}

// ============================================================================
// Decision tree
// ============================================================================

type treeModel struct {
	spec       TreeSpec
	nFeatures  int
	regression bool
}

func newTree(spec *TreeSpec, nFeatures int, regression bool) (*treeModel, error) {
	if spec == nil {
		return nil, errors.New("missing tree section")
	}
	n := len(spec.ChildrenLeft)
	if n == 0 {
		return nil, errors.New("tree has no nodes")
	}
	if len(spec.ChildrenRight) != n || len(spec.Feature) != n || len(spec.Threshold) != n || len(spec.Value) != n {
		return nil, errors.New("tree node arrays differ in length")
	}

	for i := 0; i < n; i++ {
		left, right := spec.ChildrenLeft[i], spec.ChildrenRight[i]
		if left == -1 {
			if len(spec.Value[i]) == 0 {
				return nil, fmt.Errorf("leaf %d has no value", i)
			}
			continue
		}
		// children always follow their parent, so walks terminate
		if left <= i || left >= n || right <= i || right >= n {
			return nil, fmt.Errorf("node %d has invalid children", i)
		}
		if spec.Feature[i] < 0 || spec.Feature[i] >= nFeatures {
			return nil, fmt.Errorf("node %d splits on feature %d of %d", i, spec.Feature[i], nFeatures)
		}
	}

	return &treeModel{spec: *spec, nFeatures: nFeatures, regression: regression}, nil
}

func (m *treeModel) NumFeatures() int { return m.nFeatures }

func (m *treeModel) Predict(x []float64) (Prediction, error) {
	node := 0
	for m.spec.ChildrenLeft[node] != -1 {
		if x[m.spec.Feature[node]] <= m.spec.Threshold[node] {
			node = m.spec.ChildrenLeft[node]
		} else {
			node = m.spec.ChildrenRight[node]
		}
	}

	value := m.spec.Value[node]
	if m.regression {
		return Prediction{Value: value[0], Regression: true}, nil
	}
	return Prediction{ClassID: floats.MaxIdx(value)}, nil
}

// ============================================================================
// Linear
// ============================================================================

type linearModel struct {
	weights    *mat.Dense
	bias       *mat.VecDense
	nFeatures  int
	regression bool
}

func newLinear(spec *LinearSpec, nFeatures int, regression bool) (*linearModel, error) {
	if spec == nil || len(spec.Coef) == 0 {
		return nil, errors.New("missing linear coefficients")
	}
	rows := len(spec.Coef)
	if regression && rows != 1 {
		return nil, fmt.Errorf("regression expects 1 coefficient row, got %d", rows)
	}

	data := make([]float64, 0, rows*nFeatures)
	for i, row := range spec.Coef {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("coefficient row %d has %d values, expected %d", i, len(row), nFeatures)
		}
		data = append(data, row...)
	}

	bias := make([]float64, rows)
	switch len(spec.Intercept) {
	case 0:
	case rows:
		copy(bias, spec.Intercept)
	default:
		return nil, fmt.Errorf("intercept has %d values, expected %d", len(spec.Intercept), rows)
	}

	return &linearModel{
		weights:    mat.NewDense(rows, nFeatures, data),
		bias:       mat.NewVecDense(rows, bias),
		nFeatures:  nFeatures,
		regression: regression,
	}, nil
}

func (m *linearModel) NumFeatures() int { return m.nFeatures }

func (m *linearModel) Predict(x []float64) (Prediction, error) {
	rows, _ := m.weights.Dims()

	var scores mat.VecDense
	scores.MulVec(m.weights, mat.NewVecDense(len(x), x))
	scores.AddVec(&scores, m.bias)

	if m.regression {
		return Prediction{Value: scores.AtVec(0), Regression: true}, nil
	}
	// a single row is a binary decision function
	if rows == 1 {
		if scores.AtVec(0) > 0 {
			return Prediction{ClassID: 1}, nil
		}
		return Prediction{ClassID: 0}, nil
	}
	return Prediction{ClassID: floats.MaxIdx(scores.RawVector().Data)}, nil
}

// ============================================================================
// Nearest centroid
// ============================================================================

type centroidModel struct {
	centroids [][]float64
	nFeatures int
}

func newCentroid(spec *CentroidSpec, nFeatures int) (*centroidModel, error) {
	if spec == nil || len(spec.Centroids) == 0 {
		return nil, errors.New("missing centroids")
	}
	for i, c := range spec.Centroids {
		if len(c) != nFeatures {
			return nil, fmt.Errorf("centroid %d has %d values, expected %d", i, len(c), nFeatures)
		}
	}
	return &centroidModel{centroids: spec.Centroids, nFeatures: nFeatures}, nil
}

func (m *centroidModel) NumFeatures() int { return m.nFeatures }

func (m *centroidModel) Predict(x []float64) (Prediction, error) {
	best, bestDist := 0, math.Inf(1)
	for i, c := range m.centroids {
		if d := floats.Distance(x, c, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return Prediction{ClassID: best}, nil
}
