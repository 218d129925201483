package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// CarModel is one row of the reference catalog of known market models.
// The catalog is optional: when absent the pipeline runs without pre-filtering.
type CarModel struct {
	ID          int64           `json:"id" db:"id"`
	ModelName   string          `json:"model_name" db:"model_name"`
	Make        string          `json:"make" db:"make"`
	Year        int             `json:"year" db:"year"`
	EngineCC    *int            `json:"engine_cc,omitempty" db:"engine_cc"`
	FuelType    *string         `json:"fuel_type,omitempty" db:"fuel_type"`
	Automatic   *bool           `json:"automatic,omitempty" db:"automatic"`
	PriceAvg    *float64        `json:"price_avg,omitempty" db:"price_avg"`
	Description *string         `json:"description,omitempty" db:"description"`
	Tags        JSONArray       `json:"tags,omitempty" db:"tags"`
	Embedding   pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// CatalogFilter restricts catalog lookups to the profile's hard constraints
type CatalogFilter struct {
	YearMin     *int
	FuelType    *string
	Automatic   *bool
	EngineCCMin *int
	EngineCCMax *int
	PriceMin    *float64
	PriceMax    *float64
}

// RunRecord is one append-only audit entry for a completed advisor run.
// It is written for debugging and never read back into the decision path.
type RunRecord struct {
	SessionID      string          `json:"session_id" db:"session_id"`
	Profile        JSONMap         `json:"profile" db:"profile"`
	Candidates     JSONArray       `json:"candidates" db:"candidates"`
	Records        json.RawMessage `json:"records" db:"records"`
	Recommendation string          `json:"recommendation" db:"recommendation"`
	TookMs         int             `json:"took_ms" db:"took_ms"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}

// JSONMap represents a JSON object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
