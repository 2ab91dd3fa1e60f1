package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"outbreakwatch/internal/types"
)

// medicalRecordDoc is the stored shape of a medical record. Symptoms is
// either a list of strings or a single free-text string.
type medicalRecordDoc struct {
	UserID    string    `firestore:"userId"`
	Symptoms  any       `firestore:"symptoms"`
	PinCode   string    `firestore:"pinCode,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type waterQualityDoc struct {
	ReporterID        string    `firestore:"reporterId,omitempty"`
	AreaPinCode       string    `firestore:"areaPinCode,omitempty"`
	LocationCity      string    `firestore:"locationCity,omitempty"`
	BacterialPresence string    `firestore:"bacterialPresence"`
	ReportedAt        time.Time `firestore:"reportedAt"`
}

type userLocationDoc struct {
	PinCode  string `firestore:"pinCode,omitempty"`
	Location struct {
		PinCode string `firestore:"pinCode,omitempty"`
		City    string `firestore:"city,omitempty"`
	} `firestore:"location"`
}

// symptomsFromField normalizes the stored symptoms value to a list.
// A free-text value is split on commas and semicolons.
func symptomsFromField(v any) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// SignalStore reads engine inputs from Firestore.
type SignalStore struct {
	client *firestore.Client
}

// NewSignalStore creates a SignalStore.
func NewSignalStore(client *firestore.Client) *SignalStore {
	return &SignalStore{client: client}
}

// FindSignalsInWindow returns medical records created at or after since.
func (s *SignalStore) FindSignalsInWindow(ctx context.Context, since time.Time) ([]types.MedicalSignal, error) {
	iter := s.client.Collection(CollectionMedicalRecords).
		Where("createdAt", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	var out []types.MedicalSignal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query medical records", err)
		}
		var d medicalRecordDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode medical record", fmt.Errorf("%s: %w", doc.Ref.ID, err))
		}
		out = append(out, types.MedicalSignal{
			ID:         doc.Ref.ID,
			OwnerID:    d.UserID,
			Symptoms:   symptomsFromField(d.Symptoms),
			PinCode:    d.PinCode,
			ObservedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// FindFailuresInWindow returns failed water tests reported at or after since.
func (s *SignalStore) FindFailuresInWindow(ctx context.Context, since time.Time) ([]types.WaterQualityReport, error) {
	iter := s.client.Collection(CollectionWaterQuality).
		Where("bacterialPresence", "==", string(types.BacterialFail)).
		Where("reportedAt", ">=", since).
		Documents(ctx)
	defer iter.Stop()

	var out []types.WaterQualityReport
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query water quality reports", err)
		}
		var d waterQualityDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode water quality report", fmt.Errorf("%s: %w", doc.Ref.ID, err))
		}
		out = append(out, types.WaterQualityReport{
			ID:                doc.Ref.ID,
			ReporterID:        d.ReporterID,
			AreaPinCode:       d.AreaPinCode,
			LocationCity:      d.LocationCity,
			BacterialPresence: types.BacterialPresence(d.BacterialPresence),
			ReportedAt:        d.ReportedAt,
		})
	}
	return out, nil
}

// FindAllProfiles returns the location fields of every user document. The
// document id is the owner id.
func (s *SignalStore) FindAllProfiles(ctx context.Context) ([]types.LocationProfile, error) {
	iter := s.client.Collection(CollectionUsers).
		Select("pinCode", "location").
		Documents(ctx)
	defer iter.Stop()

	var out []types.LocationProfile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user profiles", err)
		}
		var d userLocationDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to decode user profile", fmt.Errorf("%s: %w", doc.Ref.ID, err))
		}
		out = append(out, types.LocationProfile{
			OwnerID:  doc.Ref.ID,
			PinCode:  d.PinCode,
			Location: types.ProfileLocation{PinCode: d.Location.PinCode, City: d.Location.City},
		})
	}
	return out, nil
}

// InsertSignal stores a medical record under its id.
func (s *SignalStore) InsertSignal(ctx context.Context, sig types.MedicalSignal) error {
	_, err := s.client.Collection(CollectionMedicalRecords).Doc(sig.ID).Set(ctx, medicalRecordDoc{
		UserID:    sig.OwnerID,
		Symptoms:  sig.Symptoms,
		PinCode:   sig.PinCode,
		CreatedAt: sig.ObservedAt,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert medical record", err)
	}
	return nil
}

// InsertReport stores a water-quality report under its id.
func (s *SignalStore) InsertReport(ctx context.Context, r types.WaterQualityReport) error {
	_, err := s.client.Collection(CollectionWaterQuality).Doc(r.ID).Set(ctx, waterQualityDoc{
		ReporterID:        r.ReporterID,
		AreaPinCode:       r.AreaPinCode,
		LocationCity:      r.LocationCity,
		BacterialPresence: string(r.BacterialPresence),
		ReportedAt:        r.ReportedAt,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert water quality report", err)
	}
	return nil
}

// UpsertProfile merges location fields into the user document.
func (s *SignalStore) UpsertProfile(ctx context.Context, p types.LocationProfile) error {
	_, err := s.client.Collection(CollectionUsers).Doc(p.OwnerID).Set(ctx, map[string]any{
		"pinCode": p.PinCode,
		"location": map[string]any{
			"pinCode": p.Location.PinCode,
			"city":    p.Location.City,
		},
	}, firestore.MergeAll)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert user profile", err)
	}
	return nil
}
