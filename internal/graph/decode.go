package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned when a result set fails validation.
var ErrInvalid = errors.New("invalid graph data")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode reads a JSON result set of the form {"nodes": [...], "links": [...]}.
func Decode(r io.Reader) (GraphData, error) {
	var data GraphData
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return GraphData{}, fmt.Errorf("decoding graph data: %w", err)
	}
	for _, n := range data.Nodes {
		NormalizeNumbers(n.Properties)
	}

	if err := Validate(data); err != nil {
		return GraphData{}, err
	}
	return data, nil
}

// Validate checks the structural requirements of a result set.
func Validate(data GraphData) error {
	if err := validate.Struct(data); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", ErrInvalid, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ReadFile decodes a result set from a JSON file. A path of "-" reads stdin.
func ReadFile(path string) (GraphData, error) {
	if path == "-" {
		return Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return GraphData{}, fmt.Errorf("opening graph file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// NormalizeNumbers replaces json.Number values in props with int64 when
// integral and float64 otherwise. Values nested in lists are converted too.
func NormalizeNumbers(props map[string]any) {
	for k, v := range props {
		props[k] = normalizeNumber(v)
	}
}

func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		for i := range val {
			val[i] = normalizeNumber(val[i])
		}
		return val
	default:
		return v
	}
}
