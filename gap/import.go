package gap

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"skillgap/fsutil"
	"skillgap/logger"
	"skillgap/skill"
)

// ErrDestinationExists is returned by Import when the target directory is
// already present.
var ErrDestinationExists = fsutil.ErrDestinationExists

// Analyzer performs the filesystem side of gap closing.
type Analyzer struct {
	trash Trasher
	log   logger.Logger
}

// New creates an Analyzer. A nil trasher uses the freedesktop trash.
func New(trash Trasher, log logger.Logger) *Analyzer {
	if trash == nil {
		trash = NewDirTrash("")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Analyzer{trash: trash, log: log}
}

// Import copies the directory holding rec's document to
// targetDir/<directory name>. It never overwrites an existing destination
// and leaves no partial copy behind on failure.
func (a *Analyzer) Import(rec skill.Record, targetDir string) (string, error) {
	src := rec.Dir()
	if src == "" {
		return "", fmt.Errorf("import %s: record has no local path", rec.Name)
	}
	dest := filepath.Join(targetDir, filepath.Base(src))
	if fsutil.WithinRoot(src, dest) == nil {
		return "", fmt.Errorf("import %s: destination %s lies inside the source", rec.Name, dest)
	}

	if err := fsutil.InstallDir(src, dest); err != nil {
		a.log.Warn("gap.import_failed",
			logger.String("skill", rec.Name),
			logger.String("dest", dest),
			logger.Err(err),
		)
		return "", fmt.Errorf("import %s: %w", rec.Name, err)
	}

	a.log.Info("gap.imported", logger.String("skill", rec.Name), logger.String("dest", dest))
	return dest, nil
}

// ImportFailure names one record that could not be imported.
type ImportFailure struct {
	Index int    `json:"-"` // position in the input slice
	Name  string `json:"name"`
	Err   error  `json:"-"`
}

func (f ImportFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Name  string `json:"name"`
		Error string `json:"error"`
	}{f.Name, msg})
}

// BatchReport summarizes ImportAll.
type BatchReport struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Imported  []string        `json:"imported"`
	Failures  []ImportFailure `json:"failures,omitempty"`
}

// Summary returns "imported N of M".
func (b BatchReport) Summary() string {
	return fmt.Sprintf("imported %d of %d", b.Succeeded, b.Total)
}

// Err joins the failures, or returns nil when every import succeeded.
func (b BatchReport) Err() error {
	errs := make([]error, 0, len(b.Failures))
	for _, f := range b.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// ImportAll imports every record concurrently. One failure does not affect
// the others; results keep input order.
func (a *Analyzer) ImportAll(recs []skill.Record, targetDir string) BatchReport {
	dests := make([]string, len(recs))
	errs := make([]error, len(recs))

	var wg sync.WaitGroup
	for i, r := range recs {
		wg.Add(1)
		go func(i int, r skill.Record) {
			defer wg.Done()
			dests[i], errs[i] = a.Import(r, targetDir)
		}(i, r)
	}
	wg.Wait()

	report := BatchReport{Total: len(recs), Imported: []string{}}
	for i, r := range recs {
		if errs[i] != nil {
			report.Failures = append(report.Failures, ImportFailure{Index: i, Name: r.Name, Err: errs[i]})
			continue
		}
		report.Succeeded++
		report.Imported = append(report.Imported, dests[i])
	}

	a.log.Info("gap.import_batch",
		logger.Int("total", report.Total),
		logger.Int("succeeded", report.Succeeded),
	)
	return report
}

// Delete moves the directory holding rec's document to the trash and
// returns its location there.
func (a *Analyzer) Delete(rec skill.Record) (string, error) {
	dir := rec.Dir()
	if dir == "" {
		return "", fmt.Errorf("delete %s: record has no local path", rec.Name)
	}
	loc, err := a.trash.Trash(dir)
	if err != nil {
		a.log.Warn("gap.delete_failed", logger.String("skill", rec.Name), logger.Err(err))
		return "", fmt.Errorf("delete %s: %w", rec.Name, err)
	}
	a.log.Info("gap.deleted", logger.String("skill", rec.Name), logger.String("trash", loc))
	return loc, nil
}
