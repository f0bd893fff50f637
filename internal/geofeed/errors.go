package geofeed

import (
	"fmt"

	"sipeta-bknd/internal/models"
)

// MalformedFeatureError describes a feature excluded from a load. It is
// collected into diagnostics, never returned as the call's error.
type MalformedFeatureError struct {
	Level  models.Level
	Source string
	Index  int
	Reason string
}

func (e *MalformedFeatureError) Error() string {
	return fmt.Sprintf("%s feature #%d in %s: %s", e.Level, e.Index, e.Source, e.Reason)
}

func (e *MalformedFeatureError) Diagnostic() models.Diagnostic {
	return models.Diagnostic{
		Code:    models.DiagMalformedFeature,
		Level:   e.Level,
		Subject: fmt.Sprintf("%s#%d", e.Source, e.Index),
		Message: e.Reason,
	}
}

// UnresolvedJoinWarning reports a boundary whose name matched no node, or
// more than one.
type UnresolvedJoinWarning struct {
	Level      models.Level
	Name       string
	Key        string
	Candidates int
	Reason     string
}

func (w *UnresolvedJoinWarning) Error() string {
	return fmt.Sprintf("%s %q (key %q): %s", w.Level, w.Name, w.Key, w.Reason)
}

func (w *UnresolvedJoinWarning) Diagnostic() models.Diagnostic {
	return models.Diagnostic{
		Code:    models.DiagUnresolvedJoin,
		Level:   w.Level,
		Subject: w.Name,
		Message: w.Reason,
	}
}
