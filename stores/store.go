// Package stores persists parsed policy documents. A document is the JSON
// rendering of a policy plus the raw policy text it came from; enumeration
// results are recomputed, never stored.
package stores

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrPolicyNotFound is returned when no document exists under a name
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyRecord is one stored policy document
type PolicyRecord struct {
	Name      string          `json:"name"`
	Domain    string          `json:"domain"`
	Source    string          `json:"source"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}

// PolicyStore is the persistence surface shared by the SQL, Redis and
// memory backends. Save overwrites an existing record with the same name.
type PolicyStore interface {
	Save(ctx context.Context, rec *PolicyRecord) error
	Get(ctx context.Context, name string) (*PolicyRecord, error)
	List(ctx context.Context, domain string) ([]*PolicyRecord, error)
	Delete(ctx context.Context, name string) error
}
