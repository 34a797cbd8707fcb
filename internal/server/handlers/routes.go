package handlers

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/dmitrijs2005/bookclub/internal/server/router"
)

// Path prefixes of the storefront routes.
const (
	APIPrefix      = "/api/v1/"
	UsersPrefix    = APIPrefix + "users/"
	OrdersPrefix   = APIPrefix + "orders/"
	ProductsPrefix = APIPrefix + "products/"
)

const (
	roleParam = "role"
	roleAdmin = "admin"
)

var adminOnly = map[string]any{roleParam: roleAdmin}

// Routes returns the storefront route table.
func (h *Handlers) Routes() []router.Route {
	return []router.Route{
		{Method: http.MethodPost, Path: UsersPrefix + "createUser", Handler: h.CreateUser},
		{Method: http.MethodPost, Path: UsersPrefix + "loginUser", Handler: h.LoginUser},
		{Method: http.MethodPost, Path: UsersPrefix + "logoutUser", Handler: h.LogoutUser},
		{Method: http.MethodGet, Path: UsersPrefix + "getUserBillingInfo", Handler: h.GetUserBillingInfo},
		{Method: http.MethodGet, Path: UsersPrefix + "verifyLoggedIn", Handler: h.VerifyLoggedIn},

		{Method: http.MethodGet, Path: OrdersPrefix + "getOrders", Handler: h.restricted(h.GetOrders), Params: adminOnly},
		{Method: http.MethodGet, Path: OrdersPrefix + "getUserOrders", Handler: h.GetUserOrders},
		{Method: http.MethodGet, Path: OrdersPrefix + "getCityFromZipCode", Handler: h.GetCityFromZipCode},
		{Method: http.MethodGet, Path: OrdersPrefix + "verifyCoupon", Handler: h.VerifyCoupon},
		{Method: http.MethodGet, Path: OrdersPrefix + "searchOrders", Handler: h.restricted(h.SearchOrders), Params: adminOnly},
		{Method: http.MethodPost, Path: OrdersPrefix + "createOrder", Handler: h.CreateOrder},

		{Method: http.MethodGet, Path: ProductsPrefix + "getProducts", Handler: h.GetProducts},
		{Method: http.MethodGet, Path: ProductsPrefix + "getProduct", Handler: h.GetProduct},
		{Method: http.MethodGet, Path: ProductsPrefix + "searchProducts", Handler: h.SearchProducts},
		{Method: http.MethodPost, Path: ProductsPrefix + "toggleBookDisplay", Handler: h.restricted(h.ToggleBookDisplay), Params: adminOnly},
	}
}

// restricted runs next only when the caller holds the role named by the
// route's "role" parameter.
func (h *Handlers) restricted(next router.Handler) router.Handler {
	return func(ctx context.Context, req router.Request) (router.Result, error) {
		want, ok := req.Param(roleParam)
		if !ok {
			return next(ctx, req)
		}
		if err := h.requireRole(ctx, want); err != nil {
			return router.Result{}, err
		}
		return next(ctx, req)
	}
}

func (h *Handlers) requireRole(ctx context.Context, want any) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}
	rows, err := h.db.Call(ctx, procedures.GetUserInformation, gateway.Params{"userId": userID})
	if err != nil {
		return err
	}
	role, _ := firstRow(rows).String(roleParam)
	if role == "" || role != want {
		h.logger.Warn(ctx, "role check failed", "user_id", userID, "want", want)
		return respond.Forbidden(MsgPermissionDenied)
	}
	return nil
}
