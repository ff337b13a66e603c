// Package pubstate maintains per-article management flags and the
// incremental publication watermark.
package pubstate

import (
	"context"
	"fmt"
	"time"

	"github.com/rowanhart/localwire/internal/store"
)

// Tracker owns all management-flag transitions. Every transition is a
// scoped upsert by article id; the store's upsert self-heals duplicate rows
// before inserting, so the one-row-per-article invariant survives any
// sequence of operations.
type Tracker struct {
	store  store.Store
	locale string
}

// New creates a tracker for the given locale.
func New(s store.Store, locale string) *Tracker {
	return &Tracker{store: s, locale: locale}
}

// current loads the article's management row, or a default enabled row for
// articles that have none yet.
func (t *Tracker) current(ctx context.Context, articleID int64) (*store.ManagementState, error) {
	ms, err := t.store.GetManagementState(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = &store.ManagementState{ArticleID: articleID, Enabled: true}
	}
	return ms, nil
}

func (t *Tracker) save(ctx context.Context, ms *store.ManagementState) error {
	ms.UpdatedAt = time.Now().UTC()
	return t.store.UpsertManagementState(ctx, ms)
}

// AutoReject records a scorer decision. The article stays persisted and
// queryable; only the flags change.
func (t *Tracker) AutoReject(ctx context.Context, articleID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("auto-reject %d: reason required", articleID)
	}
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.AutoRejected = true
	ms.AutoRejectReason = reason
	ms.Enabled = false
	return t.save(ctx, ms)
}

// Accept records that the scorer kept the article, clearing any previous
// auto-rejection. Operator rejections are left alone.
func (t *Tracker) Accept(ctx context.Context, articleID int64) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.AutoRejected = false
	ms.AutoRejectReason = ""
	if !ms.Rejected {
		ms.Enabled = true
	}
	return t.save(ctx, ms)
}

// Reject is the operator rejection, with an optional feedback label that
// feeds the scorer's training log.
func (t *Tracker) Reject(ctx context.Context, articleID int64, label string) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.Rejected = true
	ms.Enabled = false
	ms.FeedbackLabel = label
	return t.save(ctx, ms)
}

// Restore reverses any rejection, manual or automatic.
func (t *Tracker) Restore(ctx context.Context, articleID int64) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.Rejected = false
	ms.AutoRejected = false
	ms.AutoRejectReason = ""
	ms.Enabled = true
	return t.save(ctx, ms)
}

// Feature sets or clears the featured flag.
func (t *Tracker) Feature(ctx context.Context, articleID int64, featured bool) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.Featured = featured
	return t.save(ctx, ms)
}

// TopStory sets or clears the top-story flag.
func (t *Tracker) TopStory(ctx context.Context, articleID int64, top bool) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.TopStory = top
	return t.save(ctx, ms)
}

// Stellar marks or unmarks the article as operator-flagged exemplary. The
// scorer grants marked articles a fixed bonus on reprocessing.
func (t *Tracker) Stellar(ctx context.Context, articleID int64, stellar bool) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.Stellar = stellar
	return t.save(ctx, ms)
}

// SetDisplayOrder pins the article's position in operator listings.
func (t *Tracker) SetDisplayOrder(ctx context.Context, articleID int64, order int) error {
	ms, err := t.current(ctx, articleID)
	if err != nil {
		return err
	}
	ms.DisplayOrder = order
	return t.save(ctx, ms)
}

// Watermark returns the last processed article id for the locale.
func (t *Tracker) Watermark(ctx context.Context) (int64, error) {
	id, _, err := t.store.Watermark(ctx, t.locale)
	return id, err
}

// Advance records the highest processed article id after a generation
// pass. It never moves backwards.
func (t *Tracker) Advance(ctx context.Context, articleID int64) error {
	current, _, err := t.store.Watermark(ctx, t.locale)
	if err != nil {
		return err
	}
	if articleID <= current {
		return nil
	}
	return t.store.SetWatermark(ctx, t.locale, articleID)
}
