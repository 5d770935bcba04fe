// Package appraisal provides a client for the external market-value GraphQL
// API. It resolves graded certificates to assets and assets to current market
// values, and combines the two into the final enrichment step.
package appraisal

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

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

const (
	// defaultResolveDelay paces the two-request enrichment sequence so the
	// provider's rate limits are respected.
	defaultResolveDelay = 300 * time.Millisecond

	requestTimeout = 30 * time.Second
)

const certQuery = `query Cert($certNumber: String!) {
  cert(certNumber: $certNumber) {
    certNumber
    gradeNumber
    gradingCompany
    asset {
      id
      name
    }
  }
}`

const assetDetailsQuery = `query AssetDetails($id: ID!, $tsFilter: TimeSeriesFilter) {
  asset(id: $id) {
    id
    name
    altValueInfo(tsFilter: $tsFilter) {
      currentAltValue
    }
  }
}`

// Client for the appraisal GraphQL API
type Client struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	log        zerolog.Logger

	resolveDelay time.Duration
}

// NewClient creates a new appraisal client
func NewClient(endpoint, authToken string, log zerolog.Logger) *Client {
	return &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		authToken:    authToken,
		httpClient:   &http.Client{Timeout: requestTimeout},
		log:          log.With().Str("client", "appraisal").Logger(),
		resolveDelay: defaultResolveDelay,
	}
}

// Asset is a provider-side asset record a certificate resolves to.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type certResponse struct {
	Data *struct {
		Cert *struct {
			CertNumber     string `json:"certNumber"`
			GradeNumber    string `json:"gradeNumber"`
			GradingCompany string `json:"gradingCompany"`
			Asset          *Asset `json:"asset"`
		} `json:"cert"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type assetDetailsResponse struct {
	Data *struct {
		Asset *struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			AltValueInfo *struct {
				CurrentAltValue string `json:"currentAltValue"`
			} `json:"altValueInfo"`
		} `json:"asset"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// ResolveAssetByCertificate looks up the asset a graded certificate belongs
// to. Returns nil when the certificate is unknown to the provider.
func (c *Client) ResolveAssetByCertificate(certNumber string) (*Asset, error) {
	var resp certResponse
	err := c.query("Cert", graphqlRequest{
		Query:     certQuery,
		Variables: map[string]interface{}{"certNumber": certNumber},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve certificate %s: %w", certNumber, err)
	}

	if resp.Data == nil || resp.Data.Cert == nil || resp.Data.Cert.Asset == nil {
		c.logGraphQLErrors(resp.Errors)
		c.log.Debug().Str("cert_number", certNumber).Msg("Certificate did not resolve to an asset")
		return nil, nil
	}

	return resp.Data.Cert.Asset, nil
}

// ResolveCurrentValue fetches the current market value of an asset for a
// specific grade and grading company. Returns nil when the provider has no
// value for that combination.
func (c *Client) ResolveCurrentValue(assetID, grade, grader string) (*float64, error) {
	var resp assetDetailsResponse
	err := c.query("AssetDetails", graphqlRequest{
		Query: assetDetailsQuery,
		Variables: map[string]interface{}{
			"id": assetID,
			"tsFilter": map[string]interface{}{
				"gradeNumber":    grade,
				"gradingCompany": strings.ToUpper(grader),
			},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve value for asset %s: %w", assetID, err)
	}

	if resp.Data == nil || resp.Data.Asset == nil || resp.Data.Asset.AltValueInfo == nil {
		c.logGraphQLErrors(resp.Errors)
		c.log.Debug().Str("asset_id", assetID).Msg("No value info for asset")
		return nil, nil
	}

	raw := resp.Data.Asset.AltValueInfo.CurrentAltValue
	if raw == "" {
		return nil, nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse value %q for asset %s: %w", raw, assetID, err)
	}

	return &value, nil
}

// Enrich resolves a token detail into a card with its current market value.
// Details missing any grading attribute, unknown certificates, and assets
// without a value all yield (nil, nil): the item is skipped, not failed.
// Transport errors are returned so the caller can isolate them per item.
func (c *Client) Enrich(detail domain.TokenDetail) (*domain.EnrichedCard, error) {
	if !detail.Enrichable() {
		c.log.Debug().Int64("token_id", detail.TokenID).Msg("Skipping detail without grading attributes")
		return nil, nil
	}

	asset, err := c.ResolveAssetByCertificate(*detail.SerialNumber)
	if err != nil {
		return nil, err
	}

	if c.resolveDelay > 0 {
		time.Sleep(c.resolveDelay)
	}

	if asset == nil {
		return nil, nil
	}

	value, err := c.ResolveCurrentValue(asset.ID, *detail.Grade, *detail.Grader)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	return &domain.EnrichedCard{
		TokenID:     detail.TokenID,
		AssetID:     asset.ID,
		MarketValue: *value,
	}, nil
}

func (c *Client) logGraphQLErrors(errs []graphqlError) {
	for _, e := range errs {
		c.log.Warn().Str("graphql_error", e.Message).Msg("Provider returned GraphQL error")
	}
}

// query executes a GraphQL request and decodes the response into out. The
// operation name is appended to the endpoint path - the provider routes each
// query document through its own URL.
func (c *Client) query(operation string, reqBody graphqlRequest, out interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint+"/"+operation, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

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
