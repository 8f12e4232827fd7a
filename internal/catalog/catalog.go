// Package catalog is the course-catalog query component (C4): a thin layer
// over session.Client.Query that groups the normalized TeachingClassRecords
// by course name (spec.md §4.4's "returns grouped by course name") and
// looks a specific teaching class up by id for the monitor loop (C5).
package catalog

import (
	"context"

	"github.com/samber/lo"

	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/session"
)

// Group is every section offered under one course name.
type Group struct {
	CourseName string
	Sections   []models.TeachingClassRecord
}

// Client queries the catalog and groups results.
type Client struct {
	session *session.Client
}

// New builds a catalog client over a session core.
func New(sess *session.Client) *Client {
	return &Client{session: sess}
}

// Result is the outcome of one catalog query, surfacing the session-level
// outcome tag so callers can react to expiry without a type assertion.
type Result struct {
	Outcome session.Outcome
	Groups  []Group
	Flat    []models.TeachingClassRecord
}

// Query runs a catalog query for one course type, grouping results by
// course name. queryContent follows spec.md §4.4: empty lists everything,
// non-empty searches (course number preferred for precision).
func (c *Client) Query(ctx context.Context, courseType models.CourseType, queryContent string) (Result, error) {
	qr, err := c.session.Query(ctx, courseType, queryContent)
	if err != nil {
		return Result{Outcome: qr.Outcome}, err
	}
	if qr.Outcome != session.OutcomeOK {
		return Result{Outcome: qr.Outcome}, nil
	}

	grouped := lo.GroupBy(qr.Records, func(r models.TeachingClassRecord) string {
		return r.CourseName
	})
	groups := make([]Group, 0, len(grouped))
	for name, sections := range grouped {
		groups = append(groups, Group{CourseName: name, Sections: sections})
	}

	return Result{Outcome: session.OutcomeOK, Groups: groups, Flat: qr.Records}, nil
}

// FindByTeachingClassID scans an already-fetched Result (it issues no query
// of its own) and returns the section with the given teachingClassId, or
// false if the target row is absent from the result — spec.md's "QueryMiss" case, which
// callers MUST treat as "do nothing this iteration", never as a signal to
// fall back to a speculative select.
func FindByTeachingClassID(result Result, teachingClassID string) (models.TeachingClassRecord, bool) {
	for _, r := range result.Flat {
		if r.ID.TeachingClassID == teachingClassID {
			return r, true
		}
	}
	return models.TeachingClassRecord{}, false
}
