package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

func setupTestServer(t *testing.T, status int) (*Client, *[]recordedRequest, func()) {
	var mu sync.Mutex
	var requests []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		requests = append(requests, rec)
		mu.Unlock()
		w.WriteHeader(status)
	}))

	client := NewClient(srv.URL, 2*time.Second)
	return client, &requests, srv.Close
}

func TestAddItem_SendsExpectedRequest(t *testing.T) {
	client, requests, cleanup := setupTestServer(t, http.StatusCreated)
	defer cleanup()

	err := client.AddItem(context.Background(), "guest-1", 10, 3, 42)
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/cart/items", req.path)
	assert.Equal(t, "guest-1", req.body["customer_id"])
	assert.Equal(t, float64(10), req.body["product_id"])
	assert.Equal(t, float64(3), req.body["quantity"])
	assert.Equal(t, float64(42), req.body["variant_id"])
}

func TestUpdateItem_PutsToLineKeyPath(t *testing.T) {
	client, requests, cleanup := setupTestServer(t, http.StatusOK)
	defer cleanup()

	err := client.UpdateItem(context.Background(), "guest-1", "10:42", 2)
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/cart/items/10:42", req.path)
	assert.Equal(t, float64(2), req.body["quantity"])
}

func TestRemoveItem_DeletesWithCustomerID(t *testing.T) {
	client, requests, cleanup := setupTestServer(t, http.StatusOK)
	defer cleanup()

	err := client.RemoveItem(context.Background(), "guest-1", "10")
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/cart/items/10", req.path)
	assert.Equal(t, "customer_id=guest-1", req.query)
}

func TestClear_DeletesCart(t *testing.T) {
	client, requests, cleanup := setupTestServer(t, http.StatusOK)
	defer cleanup()

	err := client.Clear(context.Background(), "guest-1")
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, "/cart", (*requests)[0].path)
}

func TestSend_ErrorStatusReturnsError(t *testing.T) {
	client, _, cleanup := setupTestServer(t, http.StatusBadGateway)
	defer cleanup()

	err := client.Clear(context.Background(), "guest-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSend_UnreachableServerReturnsError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)

	err := client.Clear(context.Background(), "guest-1")
	assert.Error(t, err)
}
