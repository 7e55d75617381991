package artifact

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/types"
)

// DataTypeVector marks a parameter whose value spreads over several features
const DataTypeVector = "vector"

// Vectorize turns an ordered payload into a feature vector.
// Values keep payload order; parameters typed "vector" expand in place.
func Vectorize(params []types.ServiceParameter, payload types.Payload) ([]float64, error) {
	dataTypes := make(map[string]string, len(params))
	for _, p := range params {
		dataTypes[p.Name] = strings.ToLower(p.DataType)
	}

	x := make([]float64, 0, len(payload))
	for _, f := range payload {
		if dataTypes[f.Name] == DataTypeVector {
			values, err := toVector(f.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: feature %q: %v", ErrPrediction, f.Name, err)
			}
			x = append(x, values...)
			continue
		}

		v, err := toFloat(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %q: %v", ErrPrediction, f.Name, err)
		}
		x = append(x, v)
	}
	return x, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: %q", n)
		}
		return f, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case nil:
		return 0, fmt.Errorf("value is null")
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

func toVector(v interface{}) ([]float64, error) {
	switch vec := v.(type) {
	case []interface{}:
		out := make([]float64, 0, len(vec))
		for i, item := range vec {
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out = append(out, f)
		}
		return out, nil
	case []float64:
		return append([]float64(nil), vec...), nil
	case string:
		parts := strings.Split(strings.Trim(strings.TrimSpace(vec), ";"), ";")
		out := make([]float64, 0, len(parts))
		for i, part := range parts {
			f, err := toFloat(part)
			if err != nil {
				return nil, fmt.Errorf("element %d: %v", i, err)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
}
