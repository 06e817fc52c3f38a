// Package gap compares local skills against a reference catalog and performs
// the import and delete operations that close the gap.
package gap

import (
	"math"

	"skillgap/skill"
)

// Result partitions a reference set by local presence.
type Result struct {
	Present            []skill.Record `json:"present"`
	Missing            []skill.Record `json:"missing"`
	TotalAvailable     int            `json:"total_available"`
	CoveragePercentage int            `json:"coverage_percentage"`
}

// Analyze marks every reference record present (status active) when its
// normalized name occurs in local, missing otherwise. Inputs are not
// modified.
func Analyze(local, reference []skill.Record) Result {
	have := skill.NameSet(local)

	res := Result{
		Present:        []skill.Record{},
		Missing:        []skill.Record{},
		TotalAvailable: len(reference),
	}
	for _, r := range reference {
		key := r.NormalizedName
		if key == "" {
			key = skill.Normalize(r.Name)
		}
		if _, ok := have[key]; ok {
			res.Present = append(res.Present, r.WithStatus(skill.StatusActive))
		} else {
			res.Missing = append(res.Missing, r.WithStatus(skill.StatusMissing))
		}
	}
	res.CoveragePercentage = Coverage(len(res.Present), res.TotalAvailable)
	return res
}

// Coverage returns round(100*present/total), or 100 for an empty total.
func Coverage(present, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(present) / float64(total)))
}

// MissingNames returns the names of the missing records.
func (r Result) MissingNames() []string {
	names := make([]string, len(r.Missing))
	for i, m := range r.Missing {
		names[i] = m.Name
	}
	return names
}

// Partition splits records into workspace-active and global-library sets.
// Records with other statuses are dropped.
func Partition(records []skill.Record) (active, global []skill.Record) {
	for _, r := range records {
		switch r.Status {
		case skill.StatusActive:
			active = append(active, r)
		case skill.StatusImported:
			global = append(global, r)
		}
	}
	return active, global
}

// FindMissingDependencies returns rec's declared dependencies whose
// normalized names do not occur in universe, in declaration order.
func FindMissingDependencies(rec skill.Record, universe []skill.Record) []string {
	have := skill.NameSet(universe)
	var missing []string
	seen := make(map[string]bool)
	for _, dep := range rec.Dependencies {
		key := skill.Normalize(dep)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := have[key]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// DependencyReport lists, per record, the dependencies absent from universe.
// Records with no missing dependencies are omitted.
func DependencyReport(records, universe []skill.Record) map[string][]string {
	out := make(map[string][]string)
	for _, r := range records {
		if missing := FindMissingDependencies(r, universe); len(missing) > 0 {
			out[r.Name] = missing
		}
	}
	return out
}
