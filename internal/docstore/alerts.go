package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"outbreakwatch/internal/types"
)

type alertDoc struct {
	AreaKey    string     `firestore:"areaKey"`
	RiskLevel  string     `firestore:"riskLevel"`
	Message    string     `firestore:"message"`
	Status     string     `firestore:"status"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	ResolvedAt *time.Time `firestore:"resolvedAt,omitempty"`
	ResolvedBy string     `firestore:"resolvedBy,omitempty"`
}

// activeMarkerDoc lives at activeOutbreakAlerts/{HashKey(area)} while an
// area has an ACTIVE alert. It is the uniqueness guard for as long as the
// alert it names is ACTIVE.
type activeMarkerDoc struct {
	AlertID   string    `firestore:"alertId"`
	AreaKey   string    `firestore:"areaKey"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d alertDoc) toAlert(id string) types.Alert {
	return types.Alert{
		ID:         id,
		AreaKey:    d.AreaKey,
		RiskLevel:  d.RiskLevel,
		Message:    d.Message,
		Status:     types.AlertStatus(d.Status),
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
		ResolvedBy: d.ResolvedBy,
	}
}

func alertToDoc(a *types.Alert) alertDoc {
	return alertDoc{
		AreaKey:    a.AreaKey,
		RiskLevel:  a.RiskLevel,
		Message:    a.Message,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt,
		ResolvedAt: a.ResolvedAt,
		ResolvedBy: a.ResolvedBy,
	}
}

// AlertStore persists alerts in Firestore. Each ACTIVE alert has a marker
// document keyed by the hashed area key; creation and resolution update the
// alert and its marker in one transaction.
type AlertStore struct {
	client *firestore.Client
	now    func() time.Time
}

// NewAlertStore creates an AlertStore.
func NewAlertStore(client *firestore.Client) *AlertStore {
	return &AlertStore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (s *AlertStore) markerRef(areaKey string) *firestore.DocumentRef {
	return s.client.Collection(CollectionActiveMarkers).Doc(HashKey(areaKey))
}

func (s *AlertStore) alertRef(id string) *firestore.DocumentRef {
	return s.client.Collection(CollectionAlerts).Doc(id)
}

// staleMarker reports whether a marker no longer guards an ACTIVE alert:
// its alert is missing or has left ACTIVE outside Resolve.
func staleMarker(alert *alertDoc) bool {
	return alert == nil || alert.Status != string(types.AlertActive)
}

// FindActiveByArea returns the ACTIVE alert for areaKey, or nil.
func (s *AlertStore) FindActiveByArea(ctx context.Context, areaKey string) (*types.Alert, error) {
	snap, err := s.markerRef(areaKey).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read active alert marker", err)
	}
	var marker activeMarkerDoc
	if err := snap.DataTo(&marker); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode active alert marker", err)
	}

	alertSnap, err := s.alertRef(marker.AlertID).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read alert", err)
	}
	var d *alertDoc
	if err == nil {
		d = &alertDoc{}
		if err := alertSnap.DataTo(d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode alert", err)
		}
	}
	if staleMarker(d) {
		return nil, nil
	}
	alert := d.toAlert(marker.AlertID)
	return &alert, nil
}

// markedAlert reads the alert a marker points at inside tx. It returns nil
// when the alert does not exist.
func (s *AlertStore) markedAlert(tx *firestore.Transaction, markerSnap *firestore.DocumentSnapshot) (*alertDoc, error) {
	var marker activeMarkerDoc
	if err := markerSnap.DataTo(&marker); err != nil {
		return nil, err
	}
	if marker.AlertID == "" {
		return nil, nil
	}
	snap, err := tx.Get(s.alertRef(marker.AlertID))
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var d alertDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateIfNoActive creates the alert and its area marker atomically. If the
// marker guards an ACTIVE alert the transaction writes nothing and returns
// false. A stale marker is replaced.
func (s *AlertStore) CreateIfNoActive(ctx context.Context, alert *types.Alert) (bool, error) {
	id := alert.ID
	if id == "" {
		id = "alert_" + uuid.NewString()
	}
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	created := false
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		markerRef := s.markerRef(alert.AreaKey)
		markerSnap, err := tx.Get(markerRef)
		markerExists := err == nil
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if markerExists {
			current, err := s.markedAlert(tx, markerSnap)
			if err != nil {
				return err
			}
			if !staleMarker(current) {
				return nil
			}
		}

		doc := alertToDoc(alert)
		doc.Status = string(types.AlertActive)
		doc.CreatedAt = createdAt
		if err := tx.Create(s.alertRef(id), doc); err != nil {
			return err
		}
		marker := activeMarkerDoc{AlertID: id, AreaKey: alert.AreaKey, CreatedAt: createdAt}
		if markerExists {
			err = tx.Set(markerRef, marker)
		} else {
			err = tx.Create(markerRef, marker)
		}
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create alert", err)
	}
	if created {
		alert.ID = id
		alert.CreatedAt = createdAt
		alert.Status = types.AlertActive
	}
	return created, nil
}

// GetByID returns the alert with the given id.
func (s *AlertStore) GetByID(ctx context.Context, id string) (*types.Alert, error) {
	snap, err := s.alertRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundAlert, "alert not found", nil, map[string]any{"id": id})
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get alert", err)
	}
	var d alertDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode alert", err)
	}
	a := d.toAlert(snap.Ref.ID)
	return &a, nil
}

// List returns alerts matching filter, newest first.
func (s *AlertStore) List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error) {
	q := s.client.Collection(CollectionAlerts).Query
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	if filter.AreaKey != "" {
		q = q.Where("areaKey", "==", filter.AreaKey)
	}
	q = q.OrderBy("createdAt", firestore.Desc)
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []types.Alert
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
		}
		var d alertDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode alert", fmt.Errorf("%s: %w", doc.Ref.ID, err))
		}
		out = append(out, d.toAlert(doc.Ref.ID))
	}
	return out, nil
}

// Resolve marks an ACTIVE alert RESOLVED and removes its area marker in one
// transaction.
func (s *AlertStore) Resolve(ctx context.Context, id string, actorID string, at time.Time) (*types.Alert, error) {
	var resolved types.Alert
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := s.alertRef(id)
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return types.NewAppErrorWithDetails(types.ErrCodeNotFoundAlert, "alert not found", nil, map[string]any{"id": id})
		}
		if err != nil {
			return err
		}
		var d alertDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if d.Status != string(types.AlertActive) {
			return types.NewAppErrorWithDetails(types.ErrCodeConflictAlertResolved,
				"alert is already resolved", nil, map[string]any{"id": id, "status": d.Status})
		}

		markerRef := s.markerRef(d.AreaKey)
		markerSnap, err := tx.Get(markerRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		d.Status = string(types.AlertResolved)
		d.ResolvedAt = &at
		d.ResolvedBy = actorID
		if err := tx.Set(ref, d); err != nil {
			return err
		}
		if markerSnap != nil && markerSnap.Exists() {
			var marker activeMarkerDoc
			if err := markerSnap.DataTo(&marker); err == nil && marker.AlertID == id {
				if err := tx.Delete(markerRef); err != nil {
					return err
				}
			}
		}
		resolved = d.toAlert(id)
		return nil
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve alert", err)
	}
	return &resolved, nil
}
