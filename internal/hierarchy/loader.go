package hierarchy

import (
	"context"
	"errors"
	"time"

	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/names"

	"go.uber.org/zap"
)

// Loader fetches from a Source and builds a Tree. It holds no dataset state;
// swapping snapshots is the caller's job.
type Loader struct {
	source Source
	canon  *names.Canon
	logr   *logger.Logger
}

func NewLoader(source Source, canon *names.Canon, logr *logger.Logger) *Loader {
	return &Loader{source: source, canon: canon, logr: logr}
}

// Load returns a freshly built Tree. Failures to reach the source come back
// as *DataSourceError.
func (l *Loader) Load(ctx context.Context) (*Tree, []models.Diagnostic, error) {
	start := time.Now()
	raw, err := l.source.Fetch(ctx)
	if err != nil {
		var dse *DataSourceError
		if !errors.As(err, &dse) {
			err = &DataSourceError{Source: "hierarchy", Err: err}
		}
		return nil, nil, err
	}

	tree, diags := Build(raw, l.canon)
	l.logr.Info("hierarchy loaded",
		zap.Int("regions", tree.Len()),
		zap.Int("up3", len(tree.OrgUnits(models.LevelUP3))),
		zap.Int("ulp", len(tree.OrgUnits(models.LevelULP))),
		zap.Int("diagnostics", len(diags)),
		zap.Duration("took", time.Since(start)))
	return tree, diags, nil
}
