package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"skillgap/logger"
	"skillgap/skill"
)

// RepoError records the failure of one source.
type RepoError struct {
	Source skill.RepoSource `json:"source"`
	Err    error            `json:"-"`
}

func (e RepoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source.Key(), e.Err)
}

func (e RepoError) Unwrap() error { return e.Err }

// MarshalJSON renders the error message alongside the source.
func (e RepoError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Source skill.RepoSource `json:"source"`
		Error  string           `json:"error"`
	}{e.Source, msg})
}

// Catalog is the aggregated marketplace listing plus per-source failures.
type Catalog struct {
	Skills  []skill.MarketplaceSkill `json:"skills"`
	Errors  []RepoError              `json:"errors,omitempty"`
	Sources int                      `json:"sources"`
}

// Err returns nil unless every source failed. The error wraps
// ErrAllSourcesFailed and each source error.
func (c Catalog) Err() error {
	if len(c.Errors) == 0 || len(c.Errors) < c.Sources {
		return nil
	}
	errs := make([]error, len(c.Errors))
	for i, e := range c.Errors {
		errs[i] = e
	}
	return fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
}

// Records converts the catalog into a reference set for gap analysis.
func (c Catalog) Records() []skill.Record {
	out := make([]skill.Record, len(c.Skills))
	for i, m := range c.Skills {
		out[i] = m.ToRecord()
	}
	return out
}

// FetchCatalog discovers every registered source concurrently. Skills keep
// source order; failed sources are reported in Errors.
func (c *Client) FetchCatalog(ctx context.Context) Catalog {
	sources := c.registry.All()
	perSource := make([][]skill.MarketplaceSkill, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src skill.RepoSource) {
			defer wg.Done()
			perSource[i], errs[i] = c.Discover(ctx, src)
		}(i, src)
	}
	wg.Wait()

	cat := Catalog{Sources: len(sources)}
	for i, src := range sources {
		if errs[i] != nil {
			c.log.Warn("remote.source_failed", logger.String("source", src.Key()), logger.Err(errs[i]))
			cat.Errors = append(cat.Errors, RepoError{Source: src, Err: errs[i]})
			continue
		}
		cat.Skills = append(cat.Skills, perSource[i]...)
	}

	c.log.Info("remote.catalog_fetched",
		logger.Int("sources", len(sources)),
		logger.Int("skills", len(cat.Skills)),
		logger.Int("failed", len(cat.Errors)),
	)
	return cat
}

// FetchAllSkills returns the flattened catalog. It fails only when every
// source failed; the error wraps ErrAllSourcesFailed and each source error.
func (c *Client) FetchAllSkills(ctx context.Context) ([]skill.MarketplaceSkill, error) {
	cat := c.FetchCatalog(ctx)
	if err := cat.Err(); err != nil {
		return nil, err
	}
	return cat.Skills, nil
}

// Refresh clears both caches and refetches the catalog.
func (c *Client) Refresh(ctx context.Context) ([]skill.MarketplaceSkill, error) {
	c.ClearCache()
	return c.FetchAllSkills(ctx)
}
