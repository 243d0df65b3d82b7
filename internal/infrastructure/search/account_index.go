package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-service/internal/domain/entity"
	"github.com/oksasatya/account-service/internal/domain/event"
	"github.com/oksasatya/account-service/internal/domain/repository"
)

const requestTimeout = 3 * time.Second

// AccountIndex keeps an Elasticsearch index of account names and emails.
// Documents are written with external versioning so a late record never
// overwrites a newer document.
type AccountIndex struct {
	ES     *elasticsearch.Client
	Index  string
	Store  repository.EventStore
	Logger *logrus.Logger
}

func NewAccountIndex(es *elasticsearch.Client, index string, store repository.EventStore, logger *logrus.Logger) *AccountIndex {
	return &AccountIndex{ES: es, Index: index, Store: store, Logger: logger}
}

func (x *AccountIndex) Name() string { return "account_search_index" }

type document struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	Sources   []string `json:"sources"`
	Approved  bool     `json:"approved"`
	Blocked   bool     `json:"blocked"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// Handle reindexes the account the record belongs to from its full history.
func (x *AccountIndex) Handle(ctx context.Context, rec event.Record) error {
	recs, err := x.Store.Events(ctx, rec.AggregateID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	a, err := entity.LoadAccount(recs)
	if err != nil {
		return err
	}
	version := a.Version()

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if a.IsDeleted() {
		req := esapi.DeleteRequest{Index: x.Index, DocumentID: a.ID(), Version: &version, VersionType: "external"}
		res, err := req.Do(c, x.ES)
		if err != nil {
			return fmt.Errorf("es delete %s: %w", a.ID(), err)
		}
		defer func() { _ = res.Body.Close() }()
		return x.check(res, a.ID(), http.StatusNotFound, http.StatusConflict)
	}

	doc := document{
		ID:        a.ID(),
		Name:      a.Name(),
		Email:     a.Email(),
		Roles:     a.Roles(),
		Sources:   a.Sources(),
		Approved:  a.Approved(),
		Blocked:   a.IsBlocked(),
		CreatedAt: a.CreatedAt().Format(time.RFC3339Nano),
		UpdatedAt: a.UpdatedAt().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:       x.Index,
		DocumentID:  a.ID(),
		Body:        bytes.NewReader(b),
		Version:     &version,
		VersionType: "external",
		Refresh:     "false",
	}
	res, err := req.Do(c, x.ES)
	if err != nil {
		return fmt.Errorf("es index %s: %w", a.ID(), err)
	}
	defer func() { _ = res.Body.Close() }()
	return x.check(res, a.ID(), http.StatusConflict)
}

const accountMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "name":       {"type": "text"},
      "email":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "roles":      {"type": "keyword"},
      "sources":    {"type": "keyword"},
      "approved":   {"type": "boolean"},
      "blocked":    {"type": "boolean"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"}
    }
  }
}`

// EnsureIndex creates the accounts index with its mapping when it does not
// exist yet.
func (x *AccountIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.ES.Indices.Exists([]string{x.Index}, x.ES.Indices.Exists.WithContext(c))
	if err != nil {
		return fmt.Errorf("es index exists %s: %w", x.Index, err)
	}
	_ = res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("es index exists %s: %s", x.Index, res.Status())
	}

	res, err = x.ES.Indices.Create(x.Index,
		x.ES.Indices.Create.WithContext(c),
		x.ES.Indices.Create.WithBody(strings.NewReader(accountMapping)),
	)
	if err != nil {
		return fmt.Errorf("es create index %s: %w", x.Index, err)
	}
	defer func() { _ = res.Body.Close() }()
	// another instance may have created it in between
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("es create index %s: %s", x.Index, res.Status())
	}
	if x.Logger != nil {
		x.Logger.WithField("index", x.Index).Info("elasticsearch index ready")
	}
	return nil
}

// check treats the listed statuses as success. A version conflict means the
// index already holds this or a newer version.
func (x *AccountIndex) check(res *esapi.Response, id string, ok ...int) error {
	if !res.IsError() {
		return nil
	}
	for _, code := range ok {
		if res.StatusCode == code {
			if x.Logger != nil {
				x.Logger.WithFields(logrus.Fields{"account_id": id, "status": res.Status()}).Debug("es write skipped")
			}
			return nil
		}
	}
	return fmt.Errorf("es %s: %s", id, res.Status())
}

// Search runs a multi_match query on email and name and returns matching
// account ids in score order.
func (x *AccountIndex) Search(ctx context.Context, q string, size int) ([]string, error) {
	switch {
	case size <= 0:
		size = 10
	case size > 50:
		size = 50
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size":    size,
		"_source": false,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := x.ES.Search(x.ES.Search.WithContext(c), x.ES.Search.WithIndex(x.Index), x.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.ID)
	}
	return out, nil
}
