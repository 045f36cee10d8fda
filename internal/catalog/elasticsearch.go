package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"pcbuild-service/internal/models"
)

const defaultPageSize = 500

type esDocument struct {
	Position int64 `json:"position"`
	models.Product
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			Source esDocument    `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// ElasticsearchStore keeps products as documents keyed by product id,
// ordered by a position field.
type ElasticsearchStore struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
}

func NewElasticsearchStore(client *elasticsearch.Client, index string) *ElasticsearchStore {
	return &ElasticsearchStore{client: client, index: index, pageSize: defaultPageSize}
}

// Load pages through the index with search_after so catalogs larger than
// the 10k result window still load completely.
func (s *ElasticsearchStore) Load(ctx context.Context) ([]models.Product, error) {
	var (
		products    []models.Product
		searchAfter []interface{}
	)

	for {
		query := map[string]interface{}{
			"size":  s.pageSize,
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"sort":  []interface{}{map[string]interface{}{"position": "asc"}},
		}
		if searchAfter != nil {
			query["search_after"] = searchAfter
		}

		page, err := s.search(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, hit := range page.Hits.Hits {
			products = append(products, hit.Source.Product)
		}
		if len(page.Hits.Hits) < s.pageSize {
			return products, nil
		}
		searchAfter = page.Hits.Hits[len(page.Hits.Hits)-1].Sort
	}
}

func (s *ElasticsearchStore) search(ctx context.Context, query map[string]interface{}) (*esSearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("search %s: %s: %s", s.index, res.Status(), msg)
	}

	var page esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &page, nil
}

// Index bulk-writes products, numbering positions in slice order.
func (s *ElasticsearchStore) Index(ctx context.Context, products []models.Product) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": s.index, "_id": products[i].ID}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(esDocument{Position: int64(i), Product: products[i]}); err != nil {
			return 0, fmt.Errorf("encode product %s: %w", products[i].ID, err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("bulk index %s: %s", s.index, res.Status())
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed := 0
	for _, item := range result.Items {
		for _, op := range item {
			if op.Status >= 200 && op.Status < 300 {
				indexed++
			}
		}
	}
	if result.Errors {
		return indexed, fmt.Errorf("bulk index %s: %d of %d documents failed", s.index, len(products)-indexed, len(products))
	}
	return indexed, nil
}
