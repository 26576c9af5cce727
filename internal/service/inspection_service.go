package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
	"github.com/vbonduro/sitecheck/internal/inspection"
	"github.com/vbonduro/sitecheck/internal/metrics"
	"github.com/vbonduro/sitecheck/internal/notify"
	"github.com/vbonduro/sitecheck/internal/photostore"
	"github.com/vbonduro/sitecheck/internal/report"
)

// photoRepository is the subset of store.PhotoStore that InspectionService requires.
type photoRepository interface {
	Put(ctx context.Context, p domain.Photo) (*domain.Photo, error)
	Get(ctx context.Context, propertyID, evaluationID string) (*domain.Photo, error)
	Delete(ctx context.Context, propertyID, evaluationID string) (*domain.Photo, error)
}

// inspectionLister is implemented by gateways that can enumerate what they
// hold.
type inspectionLister interface {
	List(ctx context.Context) ([]domain.InspectionSummary, error)
}

// SnapshotSink receives a deep copy of the aggregate after every change.
type SnapshotSink interface {
	Enqueue(ctx context.Context, a *domain.Aggregate) error
}

type Deps struct {
	Catalog   *checklist.Catalog
	Gateway   Gateway
	Saver     SnapshotSink
	Publisher notify.Publisher
	Photos    photostore.PhotoStore
	// PhotoMeta is optional. Without it uploads still mark the evaluation.
	PhotoMeta     photoRepository
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
	EngineOptions []inspection.Option
}

// InspectionService owns one engine session per property. Each session is
// used by one request at a time.
type InspectionService struct {
	catalog    *checklist.Catalog
	gateway    Gateway
	saver      SnapshotSink
	publisher  notify.Publisher
	photos     photostore.PhotoStore
	photoMeta  photoRepository
	metrics    *metrics.Metrics
	logger     *slog.Logger
	engineOpts []inspection.Option

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu     sync.Mutex
	engine *inspection.Engine
	// users counts callers between lookup and release; guarded by
	// InspectionService.mu.
	users int
	// retained is set once the property has stored or changed state.
	// Sessions that never get there are dropped on release.
	retained atomic.Bool
}

func NewInspectionService(d Deps) *InspectionService {
	publisher := d.Publisher
	if publisher == nil {
		publisher = notify.NewLogPublisher(d.Logger)
	}
	return &InspectionService{
		catalog:    d.Catalog,
		gateway:    d.Gateway,
		saver:      d.Saver,
		publisher:  publisher,
		photos:     d.Photos,
		photoMeta:  d.PhotoMeta,
		metrics:    d.Metrics,
		logger:     d.Logger,
		engineOpts: d.EngineOptions,
		sessions:   make(map[string]*session),
	}
}

func (s *InspectionService) Catalog() *checklist.Catalog { return s.catalog }

// withSession runs fn with exclusive use of the property's engine, loading it
// on first use. When fn reports a change, a snapshot is queued for saving.
// Properties with nothing stored and no change are not kept in memory.
func (s *InspectionService) withSession(ctx context.Context, propertyID string, fn func(*inspection.Engine) (bool, error)) error {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return &inspection.ValidationError{Field: "propertyId", Reason: "must not be blank"}
	}

	sess := s.acquire(propertyID)
	defer s.release(propertyID, sess)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.engine == nil {
		agg, err := s.gateway.Load(ctx, propertyID)
		if err != nil {
			return fmt.Errorf("failed to load inspection %s: %w", propertyID, err)
		}
		sess.engine = inspection.New(s.catalog, propertyID, agg, s.engineOpts...)
		if agg != nil {
			sess.retained.Store(true)
		}
		s.logger.Debug("inspection session opened", "property_id", propertyID, "restored", agg != nil)
	}

	changed, err := fn(sess.engine)
	if err != nil || !changed {
		return err
	}
	if !sess.retained.Swap(true) {
		s.logger.Info("inspection session started", "property_id", propertyID)
	}
	if err := s.saver.Enqueue(ctx, sess.engine.Snapshot()); err != nil {
		s.logger.Error("failed to queue inspection save", "property_id", propertyID, "error", err)
	}
	return nil
}

func (s *InspectionService) acquire(propertyID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[propertyID]
	if !ok {
		sess = &session{}
		s.sessions[propertyID] = sess
	}
	sess.users++
	return sess
}

func (s *InspectionService) release(propertyID string, sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.users--
	if sess.users == 0 && !sess.retained.Load() {
		delete(s.sessions, propertyID)
	}
	s.metrics.SetActiveSessions(s.retainedSessions())
}

// retainedSessions must be called with s.mu held.
func (s *InspectionService) retainedSessions() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.retained.Load() {
			n++
		}
	}
	return n
}

// Properties lists the inspections the gateway has stored, most recently
// updated first. Changes still waiting in the save queue are not reflected.
func (s *InspectionService) Properties(ctx context.Context) ([]domain.InspectionSummary, error) {
	lister, ok := s.gateway.(inspectionLister)
	if !ok {
		return []domain.InspectionSummary{}, nil
	}
	list, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	return list, nil
}

func (s *InspectionService) Inspection(ctx context.Context, propertyID string) (*domain.Aggregate, error) {
	var out *domain.Aggregate
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		out = e.Snapshot()
		return false, nil
	})
	return out, err
}

func (s *InspectionService) Progress(ctx context.Context, propertyID string) (inspection.TotalProgress, error) {
	var out inspection.TotalProgress
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		out = e.TotalProgress()
		return false, nil
	})
	return out, err
}

func (s *InspectionService) Completion(ctx context.Context, propertyID string) (inspection.CompletionReport, error) {
	var out inspection.CompletionReport
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		out = e.Completion()
		return false, nil
	})
	return out, err
}

// ItemState returns inspection.ErrNotFound for items outside the catalog.
func (s *InspectionService) ItemState(ctx context.Context, propertyID, itemID string) (inspection.ItemState, error) {
	var out inspection.ItemState
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		st, ok := e.ItemState(itemID)
		if !ok {
			return false, fmt.Errorf("item %s: %w", itemID, inspection.ErrNotFound)
		}
		out = st
		return false, nil
	})
	return out, err
}

// WriteReport renders the XLSX report. The workbook is built while the
// session is held and copied to w afterwards.
func (s *InspectionService) WriteReport(ctx context.Context, propertyID string, w io.Writer) error {
	var buf bytes.Buffer
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		return false, report.WriteXLSX(&buf, e)
	})
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// AddEvaluation records an evaluation and, for defects still lacking a photo,
// hands a capture request to the publisher.
func (s *InspectionService) AddEvaluation(ctx context.Context, propertyID, itemID string, in inspection.EvaluationInput) (inspection.AddResult, error) {
	var res inspection.AddResult
	var kind checklist.Kind
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		if it, ok := e.Catalog().Item(itemID); ok {
			kind = it.Kind
		}
		var err error
		res, err = e.AddEvaluation(itemID, in)
		return res.Applied, err
	})
	if err != nil {
		if errors.Is(err, inspection.ErrValidation) {
			s.metrics.RecordRejection(rejectionReason(err))
			s.logger.Debug("evaluation rejected", "property_id", propertyID, "item_id", itemID, "error", err)
		}
		return inspection.AddResult{}, err
	}
	if !res.Applied {
		return res, nil
	}

	s.metrics.RecordEvaluation(string(kind), string(res.Evaluation.Grade))
	s.logger.Info("evaluation added",
		"property_id", propertyID,
		"item_id", itemID,
		"evaluation_id", res.Evaluation.ID,
		"replaced", res.Replaced,
	)

	if res.Capture != nil {
		res.Capture.ReturnPath = ReturnPath(propertyID, itemID)
		perr := s.publisher.PublishDefectCapture(ctx, *res.Capture)
		s.metrics.RecordCapture(perr)
		if perr != nil {
			s.logger.Error("failed to publish defect capture",
				"property_id", propertyID,
				"evaluation_id", res.Evaluation.ID,
				"error", perr,
			)
		}
	}
	return res, nil
}

// ReturnPath is where the capture workflow sends the user back to.
func ReturnPath(propertyID, itemID string) string {
	return "/properties/" + url.PathEscape(propertyID) + "/items/" + url.PathEscape(itemID)
}

func rejectionReason(err error) string {
	if errors.Is(err, inspection.ErrSeverityRegression) {
		return "severity_regression"
	}
	var verr *inspection.ValidationError
	if errors.As(err, &verr) {
		return verr.Field
	}
	return "validation"
}

// RemoveEvaluation deletes the record at index. Its photo, if any, is removed
// on a best-effort basis.
func (s *InspectionService) RemoveEvaluation(ctx context.Context, propertyID, itemID string, index int) (bool, error) {
	var removedID string
	var removed bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		evs := e.Evaluations(itemID)
		if index >= 0 && index < len(evs) {
			removedID = evs[index].ID
		}
		removed = e.RemoveEvaluation(itemID, index)
		return removed, nil
	})
	if err != nil || !removed {
		return removed, err
	}
	s.logger.Info("evaluation removed", "property_id", propertyID, "item_id", itemID, "evaluation_id", removedID)
	s.deletePhoto(ctx, propertyID, removedID)
	return true, nil
}

func (s *InspectionService) deletePhoto(ctx context.Context, propertyID, evaluationID string) {
	if s.photoMeta == nil {
		return
	}
	photo, err := s.photoMeta.Delete(ctx, propertyID, evaluationID)
	if err != nil {
		s.logger.Error("failed to delete photo record", "property_id", propertyID, "evaluation_id", evaluationID, "error", err)
		return
	}
	if photo == nil {
		return
	}
	if err := s.photos.Delete(ctx, photo.StorageKey); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		s.logger.Error("failed to delete photo object", "storage_key", photo.StorageKey, "error", err)
	}
}

// UploadPhoto stores the defect photo of an evaluation and marks it as taken.
// Unknown evaluations return inspection.ErrNotFound. The photo bytes are
// written before the session is taken so slow uploads do not block the
// property.
func (s *InspectionService) UploadPhoto(ctx context.Context, propertyID, itemID, evaluationID, contentType string, r io.Reader) (*domain.Photo, error) {
	if !photostore.Supported(contentType) {
		return nil, &inspection.ValidationError{Field: "contentType", Reason: fmt.Sprintf("unsupported photo type %q", contentType)}
	}
	s.logger.Info("upload photo started", "property_id", propertyID, "evaluation_id", evaluationID, "content_type", contentType)

	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		if !hasEvaluation(e.Evaluations(itemID), evaluationID) {
			return false, fmt.Errorf("evaluation %s: %w", evaluationID, inspection.ErrNotFound)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	key, err := s.photos.Save(ctx, propertyID, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to save photo: %w", err)
	}
	s.logger.Debug("photo saved", "property_id", propertyID, "storage_key", key)

	photo := &domain.Photo{
		PropertyID:   propertyID,
		ItemID:       itemID,
		EvaluationID: evaluationID,
		StorageKey:   key,
		ContentType:  contentType,
		UploadedAt:   time.Now().UTC(),
	}
	var replaced *domain.Photo
	err = s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		// The evaluation may have been removed while the bytes were written.
		if !hasEvaluation(e.Evaluations(itemID), evaluationID) {
			return false, fmt.Errorf("evaluation %s: %w", evaluationID, inspection.ErrNotFound)
		}
		if s.photoMeta != nil {
			prev, err := s.photoMeta.Put(ctx, *photo)
			if err != nil {
				return false, fmt.Errorf("failed to create photo record: %w", err)
			}
			replaced = prev
		}
		return e.MarkPhoto(itemID, evaluationID), nil
	})
	if err != nil {
		s.discardPhoto(ctx, key)
		return nil, err
	}
	if replaced != nil {
		s.discardPhoto(ctx, replaced.StorageKey)
	}
	s.logger.Info("upload photo complete", "property_id", propertyID, "evaluation_id", evaluationID)
	return photo, nil
}

// discardPhoto deletes stored bytes that no record points to.
func (s *InspectionService) discardPhoto(ctx context.Context, key string) {
	if err := s.photos.Delete(ctx, key); err != nil && !errors.Is(err, photostore.ErrNotFound) {
		s.logger.Error("failed to delete orphaned photo", "storage_key", key, "error", err)
	}
}

func hasEvaluation(evs []domain.Evaluation, id string) bool {
	for _, ev := range evs {
		if ev.ID == id {
			return true
		}
	}
	return false
}

// Photo returns the stored photo of an evaluation, or inspection.ErrNotFound.
func (s *InspectionService) Photo(ctx context.Context, propertyID, evaluationID string) (io.ReadCloser, string, error) {
	if s.photoMeta == nil {
		return nil, "", inspection.ErrNotFound
	}
	meta, err := s.photoMeta.Get(ctx, propertyID, evaluationID)
	if err != nil {
		return nil, "", err
	}
	if meta == nil {
		return nil, "", fmt.Errorf("photo of %s: %w", evaluationID, inspection.ErrNotFound)
	}
	rc, contentType, err := s.photos.Get(ctx, meta.StorageKey)
	if errors.Is(err, photostore.ErrNotFound) {
		return nil, "", fmt.Errorf("photo of %s: %w", evaluationID, inspection.ErrNotFound)
	}
	return rc, contentType, err
}

// SetItemSurveyStatus stores an item survey toggle. finalize requires a
// reason for a not-conducted status.
func (s *InspectionService) SetItemSurveyStatus(ctx context.Context, propertyID, itemID string, st domain.SurveyStatus, finalize bool) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		if finalize {
			var err error
			ok, err = e.CommitItemSurveyStatus(itemID, st)
			return ok, err
		}
		ok = e.SetItemSurveyStatus(itemID, st)
		return ok, nil
	})
	return ok, err
}

func (s *InspectionService) SetCategorySurveyStatus(ctx context.Context, propertyID, categoryID string, st domain.SurveyStatus, finalize bool) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		if finalize {
			var err error
			ok, err = e.CommitCategorySurveyStatus(categoryID, st)
			return ok, err
		}
		ok = e.SetCategorySurveyStatus(categoryID, st)
		return ok, nil
	})
	return ok, err
}

func (s *InspectionService) SetOption(ctx context.Context, propertyID, itemID, label string, v domain.OptionValue) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		var err error
		ok, err = e.SetOption(itemID, label, v)
		return ok, err
	})
	return ok, err
}

func (s *InspectionService) ClearOption(ctx context.Context, propertyID, itemID, label string) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		ok = e.ClearOption(itemID, label)
		return ok, nil
	})
	return ok, err
}

func (s *InspectionService) SetGroupExistence(ctx context.Context, propertyID, groupID string, exists bool) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		ok = e.SetGroupExistence(groupID, exists)
		return ok, nil
	})
	return ok, err
}

func (s *InspectionService) SetFinishMaterials(ctx context.Context, propertyID, groupID string, tags []string) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		var err error
		ok, err = e.SetFinishMaterials(groupID, tags)
		return ok, err
	})
	return ok, err
}

func (s *InspectionService) SetMaintenanceStatus(ctx context.Context, propertyID, maintenanceID string, st domain.MaintenanceStatus) (bool, error) {
	var ok bool
	err := s.withSession(ctx, propertyID, func(e *inspection.Engine) (bool, error) {
		var err error
		ok, err = e.SetMaintenanceStatus(maintenanceID, st)
		return ok, err
	})
	return ok, err
}

// Close flushes pending saves and releases the publisher.
func (s *InspectionService) Close() {
	if c, ok := s.saver.(interface{ Close() }); ok {
		c.Close()
	}
	s.publisher.Close()
}
