package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Prediction is the raw classifier output attached to a scan. Any JSON value is accepted.
type Prediction json.RawMessage

// MarshalJSON emits the stored document verbatim
func (p Prediction) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON keeps a copy of the raw document
func (p *Prediction) UnmarshalJSON(data []byte) error {
	if p == nil {
		return errors.New("models.Prediction: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[0:0], data...)
	return nil
}

// Value implements driver.Valuer for JSONB
func (p Prediction) Value() (driver.Value, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return []byte(p), nil
}

// Scan implements sql.Scanner for JSONB
func (p *Prediction) Scan(value any) error {
	if value == nil {
		*p = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*p = append(Prediction(nil), v...)
	case string:
		*p = Prediction(v)
	default:
		// pgx may hand back an already decoded value
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		*p = b
	}
	return nil
}

// Scan represents a single diagnostic image submission
type Scan struct {
	ID          uuid.UUID  `json:"_id"`
	UserID      uuid.UUID  `json:"userId"`
	ImageURL    string     `json:"imageUrl"`
	ImagePath   string     `json:"imagePath"`
	DiseaseName string     `json:"diseaseName"`
	Confidence  float64    `json:"confidence"`
	Prediction  Prediction `json:"prediction"`
	Notes       *string    `json:"notes,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// ScanSummary is the short form of a scan embedded in a profile
type ScanSummary struct {
	ID          uuid.UUID `json:"_id"`
	DiseaseName string    `json:"diseaseName"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	ImageURL    string    `json:"imageUrl"`
}

// Summary projects a scan onto its profile form
func (s *Scan) Summary() ScanSummary {
	return ScanSummary{
		ID:          s.ID,
		DiseaseName: s.DiseaseName,
		Confidence:  s.Confidence,
		Timestamp:   s.Timestamp,
		ImageURL:    s.ImageURL,
	}
}
