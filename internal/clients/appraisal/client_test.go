package appraisal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ilyaberbx/decentra-test-task/internal/domain"
)

func strPtr(s string) *string { return &s }

func newTestClient(endpoint, token string) *Client {
	c := NewClient(endpoint, token, zerolog.New(nil).Level(zerolog.Disabled))
	c.resolveDelay = 0
	return c
}

// graphqlStub routes requests by the per-operation path suffix.
func graphqlStub(t *testing.T, certHandler, assetHandler func(vars map[string]interface{}) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch r.URL.Path {
		case "/Cert":
			assert.Contains(t, req.Query, "query Cert")
			fmt.Fprint(w, certHandler(req.Variables))
		case "/AssetDetails":
			assert.Contains(t, req.Query, "query AssetDetails")
			fmt.Fprint(w, assetHandler(req.Variables))
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
}

func TestResolveAssetByCertificate(t *testing.T) {
	server := graphqlStub(t,
		func(vars map[string]interface{}) string {
			assert.Equal(t, "12345678", vars["certNumber"])
			return `{"data": {"cert": {"certNumber": "12345678", "asset": {"id": "asset-1", "name": "Charizard"}}}}`
		},
		nil,
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	asset, err := client.ResolveAssetByCertificate("12345678")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "asset-1", asset.ID)
	assert.Equal(t, "Charizard", asset.Name)
}

func TestResolveAssetByCertificate_NotFound(t *testing.T) {
	server := graphqlStub(t,
		func(vars map[string]interface{}) string {
			return `{"data": {"cert": null}, "errors": [{"message": "cert not found"}]}`
		},
		nil,
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	asset, err := client.ResolveAssetByCertificate("0")
	require.NoError(t, err)
	assert.Nil(t, asset)
}

func TestResolveCurrentValue(t *testing.T) {
	server := graphqlStub(t,
		nil,
		func(vars map[string]interface{}) string {
			assert.Equal(t, "asset-1", vars["id"])
			tsFilter := vars["tsFilter"].(map[string]interface{})
			assert.Equal(t, "10", tsFilter["gradeNumber"])
			// Grading company is always sent uppercased.
			assert.Equal(t, "PSA", tsFilter["gradingCompany"])

			return `{"data": {"asset": {"id": "asset-1", "altValueInfo": {"currentAltValue": "152.37"}}}}`
		},
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	value, err := client.ResolveCurrentValue("asset-1", "10", "psa")
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.Equal(t, 152.37, *value)
}

func TestResolveCurrentValue_NoValueInfo(t *testing.T) {
	server := graphqlStub(t,
		nil,
		func(vars map[string]interface{}) string {
			return `{"data": {"asset": {"id": "asset-1", "altValueInfo": null}}}`
		},
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	value, err := client.ResolveCurrentValue("asset-1", "10", "PSA")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestResolveCurrentValue_MalformedValue(t *testing.T) {
	server := graphqlStub(t,
		nil,
		func(vars map[string]interface{}) string {
			return `{"data": {"asset": {"id": "asset-1", "altValueInfo": {"currentAltValue": "n/a"}}}}`
		},
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.ResolveCurrentValue("asset-1", "10", "PSA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse value")
}

func TestEnrich(t *testing.T) {
	server := graphqlStub(t,
		func(vars map[string]interface{}) string {
			return `{"data": {"cert": {"asset": {"id": "asset-9"}}}}`
		},
		func(vars map[string]interface{}) string {
			return `{"data": {"asset": {"id": "asset-9", "altValueInfo": {"currentAltValue": "250"}}}}`
		},
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	card, err := client.Enrich(domain.TokenDetail{
		TokenID:      42,
		SerialNumber: strPtr("12345678"),
		Grader:       strPtr("psa"),
		Grade:        strPtr("10"),
	})
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, int64(42), card.TokenID)
	assert.Equal(t, "asset-9", card.AssetID)
	assert.Equal(t, 250.0, card.MarketValue)
}

func TestEnrich_SkipsNonEnrichable(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	card, err := client.Enrich(domain.TokenDetail{
		TokenID:      42,
		SerialNumber: strPtr("12345678"),
		// No grader or grade.
	})
	require.NoError(t, err)
	assert.Nil(t, card)
	assert.Zero(t, requests, "non-enrichable details must not hit the provider")
}

func TestEnrich_UnknownCertificate(t *testing.T) {
	server := graphqlStub(t,
		func(vars map[string]interface{}) string {
			return `{"data": {"cert": null}}`
		},
		nil,
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	card, err := client.Enrich(domain.TokenDetail{
		TokenID:      42,
		SerialNumber: strPtr("0"),
		Grader:       strPtr("PSA"),
		Grade:        strPtr("10"),
	})
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestEnrich_NoValue(t *testing.T) {
	server := graphqlStub(t,
		func(vars map[string]interface{}) string {
			return `{"data": {"cert": {"asset": {"id": "asset-9"}}}}`
		},
		func(vars map[string]interface{}) string {
			return `{"data": {"asset": null}}`
		},
	)
	defer server.Close()

	client := newTestClient(server.URL, "")
	card, err := client.Enrich(domain.TokenDetail{
		TokenID:      42,
		SerialNumber: strPtr("12345678"),
		Grader:       strPtr("PSA"),
		Grade:        strPtr("10"),
	})
	require.NoError(t, err)
	assert.Nil(t, card)
}

func TestEnrich_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.Enrich(domain.TokenDetail{
		TokenID:      42,
		SerialNumber: strPtr("12345678"),
		Grader:       strPtr("PSA"),
		Grade:        strPtr("10"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data": {"cert": null}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "secret-token")
	_, err := client.ResolveAssetByCertificate("1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)

	client = newTestClient(server.URL, "")
	_, err = client.ResolveAssetByCertificate("1")
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
