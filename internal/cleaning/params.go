package cleaning

import (
	"github.com/go-playground/validator/v10"

	apperrors "basiccleaning/internal/errors"
)

// JobType is the tracker job type of a cleaning run
const JobType = "basic_cleaning"

// Column names the step operates on
const (
	PriceColumn = "price"
	DateColumn  = "last_review"
)

// Params are the inputs of one cleaning run. They are fixed for the
// lifetime of the run.
type Params struct {
	InputArtifact     string  `json:"input_artifact" validate:"required"`
	OutputArtifact    string  `json:"output_artifact" validate:"required"`
	OutputType        string  `json:"output_type" validate:"required"`
	OutputDescription string  `json:"output_description"`
	MinPrice          float64 `json:"min_price"`
	MaxPrice          float64 `json:"max_price"`
}

// Validate checks that the artifact names and type are present. The
// description may be empty. The price bounds are taken as given; an
// inverted range simply keeps no rows.
func (p Params) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return apperrors.NewConfigError("invalid cleaning parameters", err)
	}
	return nil
}

// ConfigMap returns the parameters in the form recorded as run config
func (p Params) ConfigMap() map[string]any {
	return map[string]any{
		"input_artifact":     p.InputArtifact,
		"output_artifact":    p.OutputArtifact,
		"output_type":        p.OutputType,
		"output_description": p.OutputDescription,
		"min_price":          p.MinPrice,
		"max_price":          p.MaxPrice,
	}
}
