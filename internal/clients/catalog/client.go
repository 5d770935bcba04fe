// Package catalog provides a client for the external collectible catalog API.
// It covers candidate discovery (paged category listing) and per-token detail
// fetches, the first two stages of the enrichment pipeline.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilyaberbx/decentra-test-task/internal/batch"
	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

const (
	defaultPageSize  = 20
	defaultMaxPages  = 10
	defaultPageDelay = 500 * time.Millisecond

	defaultDetailBatchSize = 50
	defaultDetailDelay     = 200 * time.Millisecond

	requestTimeout = 30 * time.Second
)

// Client for the catalog API
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	// Pagination and pacing knobs. Defaults match the upstream rate limits;
	// tests shrink the delays.
	pageSize  int
	maxPages  int
	pageDelay time.Duration

	detailOpts batch.Options
}

// NewClient creates a new catalog client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log.With().Str("client", "catalog").Logger(),
		pageSize:   defaultPageSize,
		maxPages:   defaultMaxPages,
		pageDelay:  defaultPageDelay,
		detailOpts: batch.Options{
			BatchSize:           defaultDetailBatchSize,
			DelayBetweenBatches: defaultDetailDelay,
		},
	}
}

// Collectible is a catalog entry discovered by category, not yet detail-fetched.
type Collectible struct {
	TokenID int64 `json:"tokenId"`
}

// Attribute is a single metadata trait on a token detail payload.
type Attribute struct {
	TraitType  string `json:"trait_type"`
	TraitValue string `json:"trait_value"`
}

type detailMetadata struct {
	Attributes []Attribute `json:"attributes"`
}

type tokenDetailPayload struct {
	TokenID  int64           `json:"tokenId"`
	Metadata *detailMetadata `json:"metadata"`
}

type detailEnvelope struct {
	DropItem tokenDetailPayload `json:"dropItem"`
}

// FetchCandidatesByCategory fetches a single page of catalog entries for a
// category.
func (c *Client) FetchCandidatesByCategory(category string, page, pageSize int) ([]Collectible, error) {
	c.log.Debug().
		Str("category", category).
		Int("page", page).
		Int("page_size", pageSize).
		Msg("Fetching catalog page")

	body := map[string]interface{}{
		"categoryId":         category,
		"page":               strconv.Itoa(page),
		"pageSize":           strconv.Itoa(pageSize),
		"filters":            []string{},
		"saleStatus":         "all",
		"sellOrderDateOrder": "DESC",
	}

	var collectibles []Collectible
	if err := c.postJSON(c.baseURL+"/byCategory", body, &collectibles); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog page %d for category %s: %w", page, category, err)
	}

	return collectibles, nil
}

// fetchAllByCategory pages through the catalog until a short or empty page, or
// the page-count ceiling, concatenating results. A pacing delay is inserted
// between pages.
func (c *Client) fetchAllByCategory(category string) ([]Collectible, error) {
	var all []Collectible

	for page := 0; ; page++ {
		if page >= c.maxPages {
			c.log.Info().Int("max_pages", c.maxPages).Msg("Reached max pages limit")
			break
		}

		collectibles, err := c.FetchCandidatesByCategory(category, page, c.pageSize)
		if err != nil {
			return nil, err
		}

		if len(collectibles) == 0 {
			c.log.Debug().Int("page", page).Msg("No more collectibles found")
			break
		}

		all = append(all, collectibles...)

		if len(collectibles) < c.pageSize {
			c.log.Debug().
				Int("page", page).
				Int("received", len(collectibles)).
				Msg("Reached last page")
			break
		}

		if c.pageDelay > 0 {
			time.Sleep(c.pageDelay)
		}
	}

	c.log.Info().
		Str("category", category).
		Int("count", len(all)).
		Msg("Collected catalog entries")

	return all, nil
}

// FetchTokenDetailByID fetches the full detail record for a token and extracts
// the grading attributes. Missing attributes stay nil - filtering is the
// enrichment stage's job.
func (c *Client) FetchTokenDetailByID(tokenID int64) (domain.TokenDetail, error) {
	url := fmt.Sprintf("%s/getByTokenId/%d", c.baseURL, tokenID)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return domain.TokenDetail{}, fmt.Errorf("failed to build detail request for token %d: %w", tokenID, err)
	}
	req.Header.Set("Accept", "application/json")

	var envelope detailEnvelope
	if err := c.do(req, &envelope); err != nil {
		return domain.TokenDetail{}, fmt.Errorf("failed to fetch detail for token %d: %w", tokenID, err)
	}

	return transformTokenDetail(envelope.DropItem), nil
}

// FetchTokenDetailsByCategory runs candidate discovery for a category and then
// fetches every candidate's detail through the batch processor.
func (c *Client) FetchTokenDetailsByCategory(category string) ([]domain.TokenDetail, error) {
	collectibles, err := c.fetchAllByCategory(category)
	if err != nil {
		return nil, err
	}

	tokenIDs := make([]int64, 0, len(collectibles))
	for _, collectible := range collectibles {
		tokenIDs = append(tokenIDs, collectible.TokenID)
	}

	return batch.Process(tokenIDs, c.FetchTokenDetailByID, c.detailOpts), nil
}

// transformTokenDetail maps the raw detail payload onto the domain type.
func transformTokenDetail(payload tokenDetailPayload) domain.TokenDetail {
	var attributes []Attribute
	if payload.Metadata != nil {
		attributes = payload.Metadata.Attributes
	}

	return domain.TokenDetail{
		TokenID:      payload.TokenID,
		SerialNumber: attributeValue(attributes, "serial"),
		Grader:       attributeValue(attributes, "grader"),
		Grade:        attributeValue(attributes, "grade"),
	}
}

// attributeValue finds a trait by type (case-insensitive) and returns its
// value, or nil when the trait is absent or empty.
func attributeValue(attributes []Attribute, traitType string) *string {
	for _, attr := range attributes {
		if strings.EqualFold(attr.TraitType, traitType) && attr.TraitValue != "" {
			value := attr.TraitValue
			return &value
		}
	}
	return nil
}

// postJSON sends a JSON POST and decodes the response into out.
func (c *Client) postJSON(url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes a request and decodes the JSON response into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
