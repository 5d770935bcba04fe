package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ilyaberbx/decentra-test-task/internal/batch"
)

func newTestClient(baseURL string) *Client {
	c := NewClient(baseURL, zerolog.New(nil).Level(zerolog.Disabled))
	c.pageDelay = 0
	c.detailOpts = batch.Options{BatchSize: 10}
	return c
}

func pageOf(start, count int) []map[string]interface{} {
	page := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		page = append(page, map[string]interface{}{"tokenId": start + i})
	}
	return page
}

func TestFetchCandidatesByCategory_RequestShape(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/byCategory", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(pageOf(1, 3))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	collectibles, err := client.FetchCandidatesByCategory("7", 2, 20)
	require.NoError(t, err)
	require.Len(t, collectibles, 3)
	assert.Equal(t, int64(1), collectibles[0].TokenID)

	// Page and page size travel as strings.
	assert.Equal(t, "7", gotBody["categoryId"])
	assert.Equal(t, "2", gotBody["page"])
	assert.Equal(t, "20", gotBody["pageSize"])
	assert.Equal(t, "all", gotBody["saleStatus"])
	assert.Equal(t, "DESC", gotBody["sellOrderDateOrder"])
}

func TestFetchAllByCategory_StopsOnShortPage(t *testing.T) {
	var pages []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		page, err := strconv.Atoi(body["page"].(string))
		require.NoError(t, err)
		pages = append(pages, page)

		// Two full pages, then a short one.
		switch page {
		case 0, 1:
			json.NewEncoder(w).Encode(pageOf(page*defaultPageSize, defaultPageSize))
		default:
			json.NewEncoder(w).Encode(pageOf(page*defaultPageSize, 5))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	all, err := client.fetchAllByCategory("1")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, pages)
	assert.Len(t, all, 2*defaultPageSize+5)
}

func TestFetchAllByCategory_StopsOnEmptyPage(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode([]interface{}{})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	all, err := client.fetchAllByCategory("1")
	require.NoError(t, err)

	assert.Empty(t, all)
	assert.Equal(t, 1, requests)
}

func TestFetchAllByCategory_MaxPagesCeiling(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Endless full pages.
		json.NewEncoder(w).Encode(pageOf(0, defaultPageSize))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	all, err := client.fetchAllByCategory("1")
	require.NoError(t, err)

	assert.Equal(t, defaultMaxPages, requests)
	assert.Len(t, all, defaultMaxPages*defaultPageSize)
}

func TestFetchAllByCategory_PropagatesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.fetchAllByCategory("1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchTokenDetailByID_ExtractsAttributes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getByTokenId/42", r.URL.Path)

		fmt.Fprint(w, `{
			"dropItem": {
				"tokenId": 42,
				"metadata": {
					"attributes": [
						{"trait_type": "Serial", "trait_value": "12345678"},
						{"trait_type": "GRADER", "trait_value": "psa"},
						{"trait_type": "grade", "trait_value": "10"},
						{"trait_type": "year", "trait_value": "1999"}
					]
				}
			}
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	detail, err := client.FetchTokenDetailByID(42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), detail.TokenID)
	require.NotNil(t, detail.SerialNumber)
	assert.Equal(t, "12345678", *detail.SerialNumber)
	require.NotNil(t, detail.Grader)
	assert.Equal(t, "psa", *detail.Grader)
	require.NotNil(t, detail.Grade)
	assert.Equal(t, "10", *detail.Grade)
	assert.True(t, detail.Enrichable())
}

func TestFetchTokenDetailByID_MissingMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dropItem": {"tokenId": 7}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	detail, err := client.FetchTokenDetailByID(7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), detail.TokenID)
	assert.Nil(t, detail.SerialNumber)
	assert.Nil(t, detail.Grader)
	assert.Nil(t, detail.Grade)
	assert.False(t, detail.Enrichable())
}

func TestFetchTokenDetailsByCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/byCategory" {
			json.NewEncoder(w).Encode(pageOf(100, 3))
			return
		}

		id := r.URL.Path[len("/getByTokenId/"):]
		if id == "101" {
			// One detail fetch fails; the rest of the batch survives.
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"dropItem": {"tokenId": %s, "metadata": {"attributes": [
			{"trait_type": "serial", "trait_value": "s-%s"},
			{"trait_type": "grader", "trait_value": "PSA"},
			{"trait_type": "grade", "trait_value": "9"}
		]}}}`, id, id)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	details, err := client.FetchTokenDetailsByCategory("1")
	require.NoError(t, err)

	require.Len(t, details, 2)
	assert.Equal(t, int64(100), details[0].TokenID)
	assert.Equal(t, int64(102), details[1].TokenID)
}

func TestAttributeValue(t *testing.T) {
	attrs := []Attribute{
		{TraitType: "Serial", TraitValue: "abc"},
		{TraitType: "empty", TraitValue: ""},
	}

	require.NotNil(t, attributeValue(attrs, "serial"))
	assert.Equal(t, "abc", *attributeValue(attrs, "SERIAL"))
	assert.Nil(t, attributeValue(attrs, "empty"))
	assert.Nil(t, attributeValue(attrs, "missing"))
	assert.Nil(t, attributeValue(nil, "serial"))
}

func TestFetchAllByCategory_PageDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["page"].(string) == "0" {
			json.NewEncoder(w).Encode(pageOf(0, defaultPageSize))
			return
		}
		json.NewEncoder(w).Encode([]interface{}{})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.pageDelay = 30 * time.Millisecond

	start := time.Now()
	_, err := client.fetchAllByCategory("1")
	require.NoError(t, err)

	// One full page means exactly one pacing pause before the final fetch.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
