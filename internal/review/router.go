// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review routes merged records by confidence and runs the
// human-review exchange: low-confidence records go out as CSV batches
// and come back as accept/correct/reject decisions.
package review

import (
	"errors"
	"fmt"

	"github.com/pdiddy/lexengine/pkg/types"
)

// ErrUnknownRecord marks a correction import whose record ID matches
// nothing in the record set. The row is skipped; other rows still apply.
var ErrUnknownRecord = errors.New("unknown record")

const defaultHighConfidenceThreshold = 0.7

// Router partitions pending records against the configured confidence
// threshold.
type Router struct {
	cfg types.ReviewConfig
}

func NewRouter(cfg types.ReviewConfig) *Router {
	if cfg.HighConfidenceThreshold <= 0 {
		cfg.HighConfidenceThreshold = defaultHighConfidenceThreshold
	}
	return &Router{cfg: cfg}
}

// Route decides a single record's status: pending records at or above
// the threshold are accepted, the rest are flagged for review. Records
// that already left pending keep their status.
func (r *Router) Route(rec *types.MergedRecord) types.ReviewStatus {
	if rec.Status != types.StatusPending {
		return rec.Status
	}

	next := types.StatusFlagged
	if rec.Confidence >= r.cfg.HighConfidenceThreshold {
		next = types.StatusAccepted
	}
	if rec.Status.CanTransition(next) {
		rec.Status = next
	}
	return rec.Status
}

// RouteAll routes every record in place and returns the flagged subset.
func (r *Router) RouteAll(records []types.MergedRecord) []*types.MergedRecord {
	var flagged []*types.MergedRecord
	for i := range records {
		if r.Route(&records[i]) == types.StatusFlagged {
			flagged = append(flagged, &records[i])
		}
	}
	return flagged
}

// Reason explains why a record was flagged, for the review batch.
func (r *Router) Reason(rec *types.MergedRecord) string {
	if rec.Fallback {
		return fmt.Sprintf("unparsable citation (confidence %.2f)", rec.Confidence)
	}
	return fmt.Sprintf("low confidence (%.2f)", rec.Confidence)
}
