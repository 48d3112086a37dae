// Package service loads the public batch catalog and the signed-in user's dashboard.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/catalog/domain"
)

// PathPublicBatches lists every public batch.
const PathPublicBatches = "/api/public-batches"

// API is the subset of the authenticated client the catalog needs.
type API interface {
	GetJSON(ctx context.Context, path string, out any) error
}

// Enrollments answers which batches the signed-in user is enrolled in.
type Enrollments interface {
	EnrolledBatchIDs() []string
}

// Dashboard is the initial data of the user dashboard.
type Dashboard struct {
	All         []domain.Batch
	Enrolled    []domain.Batch
	Filtered    []domain.Batch
	EnrolledIDs []string
}

// Catalog reads batches from the platform API.
type Catalog struct {
	api         API
	enrollments Enrollments
}

// NewCatalog returns a Catalog. enrollments may be nil for signed-out browsing.
func NewCatalog(api API, enrollments Enrollments) *Catalog {
	return &Catalog{api: api, enrollments: enrollments}
}

// batchDTO is a batch as the server sends it. Older records carry the ID only as _id.
type batchDTO struct {
	ID          string          `json:"id"`
	LegacyID    string          `json:"_id"`
	BatchName   string          `json:"batchName"`
	Description string          `json:"description"`
	Mode        string          `json:"mode"`
	Language    string          `json:"language"`
	Price       json.RawMessage `json:"price"`
	StartDate   string          `json:"startDate"`
	Duration    string          `json:"duration"`
	Thumbnail   string          `json:"thumbnail"`
}

// ListPublic fetches every public batch.
func (c *Catalog) ListPublic(ctx context.Context) ([]domain.Batch, error) {
	var dtos []batchDTO
	if err := c.api.GetJSON(ctx, PathPublicBatches, &dtos); err != nil {
		return nil, fmt.Errorf("list public batches: %w", err)
	}
	out := make([]domain.Batch, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, toDomain(d))
	}
	return out, nil
}

// LoadDashboard fetches the catalog and splits it into enrolled and filtered batches. Enrolled IDs
// come from the session, so an enrollment made in this or an earlier run shows up.
func (c *Catalog) LoadDashboard(ctx context.Context, filter domain.Filter) (*Dashboard, error) {
	all, err := c.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	var enrolledIDs []string
	if c.enrollments != nil {
		enrolledIDs = c.enrollments.EnrolledBatchIDs()
	}
	set := make(map[string]struct{}, len(enrolledIDs))
	for _, id := range enrolledIDs {
		set[id] = struct{}{}
	}
	enrolled := make([]domain.Batch, 0, len(set))
	for _, b := range all {
		if _, ok := set[b.ID]; ok {
			enrolled = append(enrolled, b)
		}
	}
	return &Dashboard{
		All:         all,
		Enrolled:    enrolled,
		Filtered:    filter.Apply(all),
		EnrolledIDs: enrolledIDs,
	}, nil
}

func toDomain(d batchDTO) domain.Batch {
	b := domain.Batch{
		ID:          d.LegacyID,
		Name:        d.BatchName,
		Description: d.Description,
		Duration:    d.Duration,
		Thumbnail:   d.Thumbnail,
	}
	if b.ID == "" {
		b.ID = d.ID
	}
	if m, ok := domain.ParseMode(d.Mode); ok {
		b.Mode = m
	} else if d.Mode != "" {
		log.Debug().Str("batch_id", b.ID).Str("mode", d.Mode).Msg("catalog: unknown batch mode")
	}
	if l, ok := domain.ParseLanguage(d.Language); ok {
		b.Language = l
	} else if d.Language != "" {
		log.Debug().Str("batch_id", b.ID).Str("language", d.Language).Msg("catalog: unknown batch language")
	}
	b.Price = parsePrice(d.Price)
	b.StartDate = parseDate(d.StartDate)
	return b
}

// parsePrice accepts a JSON number or numeric string of rupees.
func parsePrice(raw json.RawMessage) *money.Money {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return money.NewFromFloat(f, domain.Currency)
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
