// Package lifecycle orchestrates item creation, editing, analysis and the
// nightly freshness sweep on top of the store layer. It is the only place
// that decides WHICH freshness and quantity writes happen; the store decides
// how they hit the database.
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pantrylog/pantrylog/internal/analyzer"
	"github.com/pantrylog/pantrylog/internal/freshness"
	"github.com/pantrylog/pantrylog/internal/imaging"
	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/store"
)

// ErrAnalyzerDisabled is returned by analysis operations when no analyzer
// client is configured.
var ErrAnalyzerDisabled = errors.New("photo analysis is not configured")

// Observer receives item change notifications. Callbacks run synchronously
// on the mutating goroutine and must not block.
type Observer interface {
	ItemCreated(item *model.Item)
	ItemUpdated(item *model.Item)
	ItemDeleted(userID int64, id string)
	// ItemExpiring fires when a nightly sweep moves an item onto the
	// reminder threshold or down to zero days left.
	ItemExpiring(item *model.Item)
}

// Service coordinates item operations.
type Service struct {
	db       *sql.DB
	analyzer analyzer.Client // nil when analysis is disabled
	log      *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

// NewService builds a lifecycle service. The analyzer may be nil; analysis
// operations then return ErrAnalyzerDisabled.
func NewService(db *sql.DB, an analyzer.Client, log *zap.Logger) *Service {
	return &Service{
		db:       db,
		analyzer: an,
		log:      log,
		now:      time.Now,
	}
}

// Subscribe registers an observer for item change notifications.
func (s *Service) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Service) each(fn func(Observer)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		fn(o)
	}
}

// CreateInput carries a manually entered item.
type CreateInput struct {
	UserID     int64
	Name       string
	Label      string
	Store      string
	Storage    model.Storage
	AcquiredAt string
	DaysLeft   *int
	Quantity   *store.QuantityInput
}

// Create inserts a manually entered item. Out-of-range values are clamped
// rather than rejected; only a non-positive quantity is refused here because
// zero quantity means the item does not exist.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Item, error) {
	if in.Quantity != nil && in.Quantity.Value <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}
	if in.DaysLeft != nil {
		d := model.ClampDaysLeft(*in.DaysLeft)
		in.DaysLeft = &d
	}

	item, err := store.CreateItem(ctx, s.db, store.CreateItemInput{
		UserID:     in.UserID,
		Name:       in.Name,
		Label:      in.Label,
		Store:      in.Store,
		Storage:    model.ClampStorage(in.Storage),
		AcquiredAt: in.AcquiredAt,
		DaysLeft:   in.DaysLeft,
		Quantity:   in.Quantity,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item created",
		zap.String("item_id", item.ID), zap.String("name", item.Name))
	s.each(func(o Observer) { o.ItemCreated(item) })
	return item, nil
}

// CreateFromAnalysis stores a photo as a new item, filling every field the
// analyzer could read and defaulting the rest. The photo must already be
// normalized (see imaging.Process). Fields the analyzer guessed are marked
// estimated so a later edit or re-analysis can overwrite them.
func (s *Service) CreateFromAnalysis(ctx context.Context, userID int64, photo []byte, mime string) (*model.Item, error) {
	if s.analyzer == nil {
		return nil, ErrAnalyzerDisabled
	}

	res, err := s.analyzer.AnalyzeImage(ctx, photo, mime)
	if err != nil {
		return nil, fmt.Errorf("analyzing photo: %w", err)
	}

	in := store.CreateItemInput{UserID: userID}
	if res.Name != nil {
		in.Name = *res.Name
	}
	if res.Label != nil {
		in.Label = *res.Label
	}
	if res.Store != nil {
		in.Store = *res.Store
	}
	if res.Storage != nil {
		in.Storage = model.ClampStorage(model.Storage(*res.Storage))
	}

	qty := store.QuantityInput{Type: model.QtyCount, Unit: "ea", Value: 1, Estimated: true}
	if res.QtyType != nil {
		qty.Type = model.ClampQtyType(model.QtyType(*res.QtyType))
	}
	if res.QtyUnit != nil {
		qty.Unit = *res.QtyUnit
	}
	if res.QtyValue != nil && *res.QtyValue > 0 {
		qty.Value = *res.QtyValue
	}
	in.Quantity = &qty

	if res.BestBy != nil {
		d := model.ClampDaysLeft(freshness.DaysUntil(*res.BestBy, s.now()))
		in.DaysLeft = &d
	}

	now := s.now()
	in.LastAnalyzedAt = &now

	item, err := store.CreateItem(ctx, s.db, in)
	if err != nil {
		return nil, err
	}
	if err := store.SetItemImage(ctx, s.db, item.ID, photo, mime); err != nil {
		return nil, err
	}

	item, err = store.GetItem(ctx, s.db, item.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("item created from photo",
		zap.String("item_id", item.ID), zap.String("name", item.Name))
	s.each(func(o Observer) { o.ItemCreated(item) })
	return item, nil
}

// AnalyzeExisting re-runs photo analysis on an item and fills in what is
// still unknown or estimated. Values the user has confirmed are never
// overwritten.
func (s *Service) AnalyzeExisting(ctx context.Context, id string) (*model.Item, error) {
	if s.analyzer == nil {
		return nil, ErrAnalyzerDisabled
	}

	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, store.ErrNotFound
	}

	photo, mime, err := store.GetItemImage(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if len(photo) == 0 {
		return nil, fmt.Errorf("item has no photo to analyze")
	}

	res, err := s.analyzer.AnalyzeImage(ctx, photo, mime)
	if err != nil {
		return nil, fmt.Errorf("analyzing photo: %w", err)
	}

	if item.Name == "Unlabeled" && res.Name != nil {
		fields := store.UpdateFieldsInput{
			Name:       *res.Name,
			Store:      item.Store,
			Storage:    item.Storage,
			AcquiredAt: item.AcquiredAt,
		}
		if res.Label != nil {
			fields.Label = *res.Label
		}
		if res.Store != nil {
			fields.Store = *res.Store
		}
		if err := store.UpdateItemFields(ctx, s.db, id, fields); err != nil {
			return nil, err
		}
	}

	if item.QtyIsEstimated && res.QtyValue != nil && *res.QtyValue > 0 {
		qty := store.QuantityInput{
			Type:      item.QtyType,
			Unit:      item.QtyUnit,
			Value:     *res.QtyValue,
			Estimated: true,
		}
		if res.QtyType != nil {
			qty.Type = model.ClampQtyType(model.QtyType(*res.QtyType))
		}
		if res.QtyUnit != nil {
			qty.Unit = *res.QtyUnit
		}
		if _, err := store.SetQuantity(ctx, s.db, id, qty); err != nil {
			return nil, err
		}
	}

	if item.DaysLeft == nil && res.BestBy != nil {
		d := model.ClampDaysLeft(freshness.DaysUntil(*res.BestBy, s.now()))
		if err := store.SetDaysLeft(ctx, s.db, id, &d); err != nil {
			return nil, err
		}
	}

	if err := store.SetLastAnalyzed(ctx, s.db, id, s.now()); err != nil {
		return nil, err
	}

	item, err = store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.each(func(o Observer) { o.ItemUpdated(item) })
	return item, nil
}

// EditInput carries an item edit from the sheet. DaysLeftEdited tells the
// save apart: a directly typed days-left wins verbatim, while an untouched
// one is recomputed only when the acquisition date moved.
type EditInput struct {
	Name           string
	Label          string
	Store          string
	Storage        model.Storage
	AcquiredAt     string
	DaysLeft       *int
	DaysLeftEdited bool
	Quantity       *store.QuantityInput
}

// SaveEdit applies an item edit. Returns the updated item, or (nil, nil)
// when a quantity write drove the item to deletion.
func (s *Service) SaveEdit(ctx context.Context, id string, in EditInput) (*model.Item, error) {
	current, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, store.ErrNotFound
	}

	if in.AcquiredAt == "" {
		in.AcquiredAt = current.AcquiredAt
	}

	if err := store.UpdateItemFields(ctx, s.db, id, store.UpdateFieldsInput{
		Name:       in.Name,
		Label:      in.Label,
		Store:      in.Store,
		Storage:    model.ClampStorage(in.Storage),
		AcquiredAt: in.AcquiredAt,
	}); err != nil {
		return nil, err
	}

	switch {
	case in.DaysLeftEdited:
		// A typed-in value wins verbatim, even against a changed date.
		days := in.DaysLeft
		if days != nil {
			d := model.ClampDaysLeft(*days)
			days = &d
		}
		if err := store.SetDaysLeft(ctx, s.db, id, days); err != nil {
			return nil, err
		}
	case in.AcquiredAt != current.AcquiredAt:
		// The date moved under an untouched countdown: recenter it around
		// the original shelf-life estimate, falling back to the current
		// count when no estimate was recorded.
		base := current.InitialDaysLeft
		if base == nil {
			base = current.DaysLeft
		}
		if base != nil {
			d := freshness.RecomputeDaysLeft(*base, in.AcquiredAt, s.now())
			if err := store.SetDaysLeft(ctx, s.db, id, &d); err != nil {
				return nil, err
			}
		}
	}

	if in.Quantity != nil {
		res, err := store.SetQuantity(ctx, s.db, id, *in.Quantity)
		if err != nil {
			return nil, err
		}
		if res.Deleted {
			s.each(func(o Observer) { o.ItemDeleted(current.UserID, id) })
			return nil, nil
		}
	}

	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.each(func(o Observer) { o.ItemUpdated(item) })
	return item, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return err
	}
	if item == nil {
		return store.ErrNotFound
	}
	if err := store.DeleteItem(ctx, s.db, id); err != nil {
		return err
	}
	s.each(func(o Observer) { o.ItemDeleted(item.UserID, id) })
	return nil
}

// Adjust applies a quantity delta and notifies observers of the outcome.
func (s *Service) Adjust(ctx context.Context, id string, in store.AdjustInput) (store.QuantityResult, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return store.QuantityResult{}, err
	}

	res, err := store.AdjustQuantity(ctx, s.db, id, in)
	if err != nil {
		return res, err
	}

	if res.Deleted {
		if item != nil {
			s.each(func(o Observer) { o.ItemDeleted(item.UserID, id) })
		}
		return res, nil
	}

	updated, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return res, err
	}
	if updated != nil {
		s.each(func(o Observer) { o.ItemUpdated(updated) })
	}
	return res, nil
}

// SetQuantity overwrites an item's quantity and notifies observers.
func (s *Service) SetQuantity(ctx context.Context, id string, in store.QuantityInput) (store.QuantityResult, error) {
	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return store.QuantityResult{}, err
	}
	if item == nil {
		return store.QuantityResult{Deleted: true}, nil
	}

	res, err := store.SetQuantity(ctx, s.db, id, in)
	if err != nil {
		return res, err
	}

	if res.Deleted {
		s.each(func(o Observer) { o.ItemDeleted(item.UserID, id) })
		return res, nil
	}

	updated, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return res, err
	}
	if updated != nil {
		s.each(func(o Observer) { o.ItemUpdated(updated) })
	}
	return res, nil
}

// AttachPhoto normalizes and stores a photo for an existing item.
func (s *Service) AttachPhoto(ctx context.Context, id string, r io.Reader) (*model.Item, error) {
	processed, err := imaging.Process(r)
	if err != nil {
		return nil, err
	}

	if err := store.SetItemImage(ctx, s.db, id, processed.Data, processed.MIME); err != nil {
		return nil, err
	}

	item, err := store.GetItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, store.ErrNotFound
	}
	s.each(func(o Observer) { o.ItemUpdated(item) })
	return item, nil
}

// RunDailySweep advances every tracked item one day: days-left goes down by
// one (floored at zero), the stage is rederived, and items landing on the
// reminder threshold or on zero raise an expiring notification. Intended to
// run once per night just after midnight.
func (s *Service) RunDailySweep(ctx context.Context) error {
	items, err := store.ListTracked(ctx, s.db)
	if err != nil {
		return fmt.Errorf("listing tracked items: %w", err)
	}

	var advanced, expiring int
	for i := range items {
		item := &items[i]
		if item.DaysLeft == nil || *item.DaysLeft == 0 {
			continue
		}

		next := *item.DaysLeft - 1
		if err := store.SetDaysLeft(ctx, s.db, item.ID, &next); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // consumed while we were sweeping
			}
			return fmt.Errorf("advancing item %s: %w", item.ID, err)
		}
		advanced++

		updated, err := store.GetItem(ctx, s.db, item.ID)
		if err != nil || updated == nil {
			continue
		}
		s.each(func(o Observer) { o.ItemUpdated(updated) })

		if next == freshness.ReminderDays || next == 0 {
			expiring++
			s.each(func(o Observer) { o.ItemExpiring(updated) })
		}
	}

	s.log.Info("daily freshness sweep finished",
		zap.Int("tracked", len(items)),
		zap.Int("advanced", advanced),
		zap.Int("expiring", expiring))
	return nil
}
