package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"
)

// SQLPolicyStore persists policy documents in SQL (squealx)
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) Save(ctx context.Context, rec *PolicyRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	q := `INSERT INTO policy_documents(name, domain, source, document_json, created_at) VALUES(:name, :domain, :source, :document_json, :created_at)
	ON CONFLICT(name) DO UPDATE SET domain=:domain, source=:source, document_json=:document_json, created_at=:created_at`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"name":          rec.Name,
		"domain":        rec.Domain,
		"source":        rec.Source,
		"document_json": string(rec.Document),
		"created_at":    rec.CreatedAt,
	})
	return err
}

func (s *SQLPolicyStore) Get(ctx context.Context, name string) (*PolicyRecord, error) {
	q := `SELECT name, domain, source, document_json, created_at FROM policy_documents WHERE name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, ErrPolicyNotFound
	}
	return scanRecord(r)
}

func (s *SQLPolicyStore) List(ctx context.Context, domain string) ([]*PolicyRecord, error) {
	q := `SELECT name, domain, source, document_json, created_at FROM policy_documents WHERE domain = :domain OR :domain = '' ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"domain": domain})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*PolicyRecord, 0)
	for r.Next() {
		rec, err := scanRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLPolicyStore) Delete(ctx context.Context, name string) error {
	q := `DELETE FROM policy_documents WHERE name = :name`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"name": name})
	return err
}

func scanRecord(r *squealx.Rows) (*PolicyRecord, error) {
	var name, domain, source, documentJSON string
	var createdRaw interface{}
	if err := r.Scan(&name, &domain, &source, &documentJSON, &createdRaw); err != nil {
		return nil, err
	}
	rec := &PolicyRecord{
		Name:     name,
		Domain:   domain,
		Source:   source,
		Document: json.RawMessage(documentJSON),
	}
	if createdRaw != nil {
		switch v := createdRaw.(type) {
		case time.Time:
			rec.CreatedAt = v
		case string:
			if t, err := parseFlexibleTime(v); err == nil {
				rec.CreatedAt = t
			}
		case []byte:
			if t, err := parseFlexibleTime(string(v)); err == nil {
				rec.CreatedAt = t
			}
		}
	}
	return rec, nil
}
