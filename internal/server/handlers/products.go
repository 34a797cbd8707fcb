package handlers

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/dmitrijs2005/bookclub/internal/server/router"
)

// GetProducts returns a page of products for the home page.
func (h *Handlers) GetProducts(ctx context.Context, req router.Request) (router.Result, error) {
	var in page
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	offset, limit, err := in.resolve()
	if err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.GetProducts, gateway.Params{"offset": offset, "limit": limit})
	if err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: rows}, nil
}

// GetProduct returns every detail of a single product.
func (h *Handlers) GetProduct(ctx context.Context, req router.Request) (router.Result, error) {
	var in productRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if !in.ProductID.Set || in.ProductID.Value <= 0 {
		return router.Result{}, missing()
	}

	rows, err := h.db.Call(ctx, procedures.GetProductByID, gateway.Params{"productId": in.ProductID.Value})
	if err != nil {
		return router.Result{}, err
	}
	if len(rows) == 0 {
		return router.Result{}, respond.NotFound(MsgNoProduct)
	}
	return router.Result{Payload: rows[0]}, nil
}

func (h *Handlers) SearchProducts(ctx context.Context, req router.Request) (router.Result, error) {
	var in searchRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if anyBlank(in.SearchInput) {
		return router.Result{}, missing()
	}
	offset, limit, err := in.resolve()
	if err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.SearchProducts, gateway.Params{
		"searchInput": strings.TrimSpace(in.SearchInput),
		"offset":      offset,
		"limit":       limit,
	})
	if err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: rows}, nil
}

// ToggleBookDisplay flips whether a book is shown in the shop.
func (h *Handlers) ToggleBookDisplay(ctx context.Context, req router.Request) (router.Result, error) {
	var in toggleRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if !in.BookID.Set || in.BookID.Value <= 0 {
		return router.Result{}, missing()
	}

	rows, err := h.db.Call(ctx, procedures.ToggleProductVisibility, gateway.Params{"productId": in.BookID.Value})
	if err != nil {
		return router.Result{}, err
	}
	if len(rows) == 0 {
		return router.Result{}, respond.NotFound(MsgNoProduct)
	}

	h.logger.Info(ctx, "book display toggled", "product_id", in.BookID.Value)
	return router.Result{Payload: MsgDisplayToggled}, nil
}
