package composer

import (
	"errors"
	"fmt"

	"sipeta-bknd/internal/models"
)

// ErrSuperseded is returned to a composition replaced by a newer request
// for the same session.
var ErrSuperseded = errors.New("composition superseded by a newer request")

// UnknownMarkerLevel means no joined boundaries exist for the requested
// level. Loaded is set when boundaries were read but none of them joined.
// Composition still succeeds with an empty result.
type UnknownMarkerLevel struct {
	Level  models.Level
	Loaded bool
}

func (e *UnknownMarkerLevel) Error() string {
	return fmt.Sprintf("marker level %q: %s", e.Level, e.reason())
}

func (e *UnknownMarkerLevel) reason() string {
	if e.Loaded {
		return "no boundary joined a region at this level"
	}
	return "no boundaries loaded for this level"
}

func (e *UnknownMarkerLevel) Diagnostic() models.Diagnostic {
	return models.Diagnostic{
		Code:    models.DiagUnknownMarker,
		Level:   e.Level,
		Subject: string(e.Level),
		Message: e.reason(),
	}
}
