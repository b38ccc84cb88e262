package search

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	meili "github.com/meilisearch/meilisearch-go"

	"activity-hub/internal/domain"
)

const healthInterval = 10 * time.Second

// Document is the shape stored in the activities index. Exact location is
// never indexed.
type Document struct {
	ID          string   `json:"id"`
	HostID      string   `json:"hostId"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Kind        string   `json:"kind"`
	Status      string   `json:"status"`
	StartsAt    int64    `json:"startsAt"`
	Tags        []string `json:"tags"`
}

func NewDocument(a *domain.Activity, tags []domain.Tag) Document {
	slugs := make([]string, 0, len(tags))
	for _, t := range tags {
		slugs = append(slugs, t.Slug)
	}
	return Document{
		ID:          a.ID.String(),
		HostID:      a.HostID.String(),
		Title:       a.Title,
		Description: a.Description,
		Kind:        string(a.Kind),
		Status:      string(a.Status),
		StartsAt:    a.StartsAt.Unix(),
		Tags:        slugs,
	}
}

// Meili keeps the activities index in Meilisearch and answers queries from
// it while the server is reachable.
type Meili struct {
	client  meili.ServiceManager
	index   string
	logger  *slog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili returns nil when client is nil so callers can pass the result of
// config.NewMeiliClient straight through.
func NewMeili(client meili.ServiceManager, index string, logger *slog.Logger) *Meili {
	if client == nil {
		return nil
	}
	m := &Meili{
		client: client,
		index:  index,
		logger: logger.With("component", "search"),
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", "error", err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        m.index,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("create index (may already exist)", "index", m.index, "error", err)
	}

	idx := m.client.Index(m.index)
	filterable := []interface{}{"status", "kind", "hostId", "startsAt", "tags"}
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("update filterable attributes", "index", m.index, "error", err)
	}
	searchable := []string{"title", "description", "tags"}
	if _, err := idx.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("update searchable attributes", "index", m.index, "error", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m != nil && m.healthy.Load()
}

// Search returns the ids of live, upcoming activities matching text, in
// ranking order, plus the estimated total.
func (m *Meili) Search(text string, filter domain.ActivityFilter, now time.Time, limit, offset int) ([]uuid.UUID, int64, error) {
	if !m.Healthy() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID: m.index,
			Query:    text,
			Limit:    int64(limit),
			Offset:   int64(offset),
			Filter:   buildFilter(filter, now),
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var ids []uuid.UUID
	var total int64
	for _, r := range resp.Results {
		total += r.EstimatedTotalHits
		ids = append(ids, hitIDs(r.Hits)...)
	}
	return ids, total, nil
}

func buildFilter(filter domain.ActivityFilter, now time.Time) []string {
	filters := []string{
		`status IN ["open", "full"]`,
		fmt.Sprintf("startsAt > %d", now.Unix()),
	}
	if filter.Kind != nil {
		filters = append(filters, fmt.Sprintf("kind = %q", string(*filter.Kind)))
	}
	if filter.HostID != nil {
		filters = append(filters, fmt.Sprintf("hostId = %q", filter.HostID.String()))
	}
	return filters
}

func hitIDs(hits []meili.Hit) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(hits))
	for _, hit := range hits {
		raw, ok := hit["id"]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (m *Meili) IndexActivity(doc Document) error {
	_, err := m.client.Index(m.index).AddDocuments([]Document{doc}, nil)
	return err
}

func (m *Meili) DeleteActivity(id uuid.UUID) error {
	_, err := m.client.Index(m.index).DeleteDocument(id.String(), nil)
	return err
}
