package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/bookclub/internal/dbx"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProducts(t *testing.T) {
	hs := newHarness(t)
	hs.db.results[procedures.GetProducts] = []dbx.Row{
		{"productId": int64(1), "name": "Dune", "price": 12.5, "image": "dune.jpg"},
	}

	resp := hs.dispatch(context.Background(), http.MethodGet, "products/getProducts", `{"totalReceivedItems":12}`)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, respond.OK(hs.db.results[procedures.GetProducts]), resp.Envelope)

	params, _ := hs.db.last(procedures.GetProducts)
	assert.Equal(t, int64(12), params["offset"])
	assert.Equal(t, int64(defaultPageSize), params["limit"])
}

func TestGetProducts_BadPaging(t *testing.T) {
	for _, body := range []string{`{"totalReceivedItems":-1}`, `{"limit":0}`, `{"limit":"many"}`} {
		hs := newHarness(t)
		resp := hs.dispatch(context.Background(), http.MethodGet, "products/getProducts", body)
		assert.Equal(t, http.StatusBadRequest, resp.Status, body)
		assert.Empty(t, hs.db.procs(), body)
	}
}

func TestGetProduct(t *testing.T) {
	hs := newHarness(t)
	hs.db.results[procedures.GetProductByID] = []dbx.Row{{"productId": int64(3), "name": "Emma"}}

	resp := hs.dispatch(context.Background(), http.MethodGet, "products/getProduct", `{"productId":"3"}`)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, dbx.Row{"productId": int64(3), "name": "Emma"}, resp.Envelope.Result)

	params, _ := hs.db.last(procedures.GetProductByID)
	assert.Equal(t, int64(3), params["productId"])
}

func TestGetProduct_Failures(t *testing.T) {
	hs := newHarness(t)

	resp := hs.dispatch(context.Background(), http.MethodGet, "products/getProduct", `{"productId":99}`)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, respond.Fail(MsgNoProduct), resp.Envelope)

	resp = hs.dispatch(context.Background(), http.MethodGet, "products/getProduct", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, respond.Fail(MsgMissingParameters), resp.Envelope)
}

func TestSearchProducts(t *testing.T) {
	hs := newHarness(t)

	resp := hs.dispatch(context.Background(), http.MethodGet, "products/searchProducts", `{"searchInput":" tolkien ","limit":4}`)
	require.Equal(t, http.StatusOK, resp.Status)

	params, _ := hs.db.last(procedures.SearchProducts)
	assert.Equal(t, "tolkien", params["searchInput"])
	assert.Equal(t, int64(4), params["limit"])

	resp = hs.dispatch(context.Background(), http.MethodGet, "products/searchProducts", `{"limit":4}`)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestToggleBookDisplay(t *testing.T) {
	hs := newHarness(t)
	hs.asAdmin("admin")
	hs.db.results[procedures.ToggleProductVisibility] = []dbx.Row{{"visible": false}}

	resp := hs.dispatch(signedIn(1), http.MethodPost, "products/toggleBookDisplay", `{"bookId":8}`)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, respond.OK(MsgDisplayToggled), resp.Envelope)

	params, _ := hs.db.last(procedures.ToggleProductVisibility)
	assert.Equal(t, int64(8), params["productId"])

	delete(hs.db.results, procedures.ToggleProductVisibility)
	resp = hs.dispatch(signedIn(1), http.MethodPost, "products/toggleBookDisplay", `{"bookId":8}`)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
