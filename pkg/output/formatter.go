package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/dirmirror/pkg/models"
)

// Formatter renders the report of a single cycle
type Formatter interface {
	// Report writes the summary of a finished cycle
	Report(w io.Writer, report *models.CycleReport) error

	// Name returns the formatter name
	Name() string
}

// NewFormatter returns the formatter registered under name
func NewFormatter(name string) (Formatter, error) {
	switch name {
	case "", "human":
		return NewHumanFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, &models.ConfigError{
			Field:   "output",
			Message: fmt.Sprintf("unknown format %q (expected human or json)", name),
		}
	}
}
