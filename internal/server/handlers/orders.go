package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/cryptox"
	"github.com/dmitrijs2005/bookclub/internal/server/gate"
	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/dmitrijs2005/bookclub/internal/server/router"
)

// orderColumns are the encrypted columns of an order detail row.
var orderColumns = []string{"email", "phoneNumber", "name", "streetName", "houseNumber", "zipCode"}

// GetOrders lists all orders for the admin panel, one page at a time.
func (h *Handlers) GetOrders(ctx context.Context, req router.Request) (router.Result, error) {
	var in page
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	offset, limit, err := in.resolve()
	if err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.GetOrderDetails, gateway.Params{"offset": offset, "limit": limit})
	if err != nil {
		return router.Result{}, err
	}
	if len(rows) == 0 {
		return router.Result{}, respond.NotFound(MsgNoOrdersLeft)
	}
	if err := h.decryptColumns(rows, orderColumns...); err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: rows}, nil
}

// SearchOrders lists orders matching searchInput. The input is matched by
// the procedure both as plain text and through its lookup index, since
// contact details are stored encrypted.
func (h *Handlers) SearchOrders(ctx context.Context, req router.Request) (router.Result, error) {
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

	rows, err := h.db.Call(ctx, procedures.GetFilteredOrderDetails, gateway.Params{
		"searchInput": strings.TrimSpace(in.SearchInput),
		"searchIndex": h.sec.BlindIndex(in.SearchInput),
		"offset":      offset,
		"limit":       limit,
	})
	if err != nil {
		return router.Result{}, err
	}
	if err := h.decryptColumns(rows, orderColumns...); err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: rows}, nil
}

// GetUserOrders lists the orders of the signed-in user.
func (h *Handlers) GetUserOrders(ctx context.Context, req router.Request) (router.Result, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return router.Result{}, err
	}
	var in page
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	offset, limit, err := in.resolve()
	if err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.GetUserOrdersDetails, gateway.Params{
		"userId": userID,
		"offset": offset,
		"limit":  limit,
	})
	if err != nil {
		return router.Result{}, err
	}
	if err := h.decryptColumns(rows, orderColumns...); err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: rows}, nil
}

// GetCityFromZipCode maps a zip code to a city name.
func (h *Handlers) GetCityFromZipCode(ctx context.Context, req router.Request) (router.Result, error) {
	var in zipCodeRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	zip := strings.ToUpper(strings.ReplaceAll(in.ZipCode, " ", ""))
	if zip == "" {
		return router.Result{}, missing()
	}

	rows, err := h.db.Call(ctx, procedures.GetCityByZipCode, gateway.Params{"zipCode": zip})
	if err != nil {
		return router.Result{}, err
	}
	city, ok := firstRow(rows).String("city")
	if !ok || city == "" {
		return router.Result{}, respond.NotFound(MsgNoCity)
	}
	return router.Result{Payload: city}, nil
}

// VerifyCoupon reports whether the coupon matches one of the stored codes.
func (h *Handlers) VerifyCoupon(ctx context.Context, req router.Request) (router.Result, error) {
	var in couponRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if anyBlank(in.Coupon) {
		return router.Result{}, missing()
	}

	_, found, err := h.findCoupon(ctx, in.Coupon)
	if err != nil {
		return router.Result{}, err
	}
	if !found {
		return router.Result{}, respond.NotFound(MsgNoCoupon)
	}
	return router.Result{Payload: MsgValidCoupon}, nil
}

// findCoupon decrypts every stored coupon and compares it with code. It
// returns the discount percentage of the match.
func (h *Handlers) findCoupon(ctx context.Context, code string) (int64, bool, error) {
	rows, err := h.db.Call(ctx, procedures.VerifyCoupon, gateway.Params{})
	if err != nil {
		return 0, false, err
	}
	for _, r := range rows {
		blob, ok := r.String("code")
		if !ok {
			continue
		}
		plain, err := h.sec.DecryptField(blob)
		if err != nil {
			return 0, false, err
		}
		if cryptox.EqualFold(plain, code) {
			discount, ok := r.Int64("discount")
			if !ok || discount < 0 {
				return 0, false, fmt.Errorf("%w: coupon has unreadable discount", common.ErrProcedure)
			}
			return discount, true, nil
		}
	}
	return 0, false, nil
}

// CreateOrder places an order. Signed-in users order on their own account;
// guests are matched by email or get a guest account.
func (h *Handlers) CreateOrder(ctx context.Context, req router.Request) (router.Result, error) {
	var in createOrderRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if err := in.validate(); err != nil {
		return router.Result{}, err
	}

	for _, line := range in.Products {
		if err := h.validateLine(ctx, line); err != nil {
			return router.Result{}, err
		}
	}

	expected := in.totalCents()
	if !anyBlank(in.Coupon) {
		discount, found, err := h.findCoupon(ctx, in.Coupon)
		if err != nil {
			return router.Result{}, err
		}
		if !found {
			return router.Result{}, respond.BadRequest(MsgInvalidCoupon)
		}
		expected = applyDiscount(expected, discount)
	}
	if cents(*in.TotalPrice) != expected {
		return router.Result{}, respond.BadRequest(MsgTotalMismatch)
	}

	userID, err := h.orderAccount(ctx, in)
	if err != nil {
		return router.Result{}, err
	}

	products, err := json.Marshal(orderLines(in.Products))
	if err != nil {
		return router.Result{}, respond.BadRequest(MsgInvalidProduct).WithCause(err)
	}

	params := gateway.Params{
		"userId":     userID,
		"products":   string(products),
		"totalPrice": float64(expected) / 100,
		"city":       strings.TrimSpace(in.City),
		"coupon":     nil,
	}
	if !anyBlank(in.Coupon) {
		params["coupon"] = strings.ToUpper(strings.TrimSpace(in.Coupon))
	}
	if err := h.encryptFields(params, map[string]string{
		"name":        in.Name,
		"streetName":  in.StreetName,
		"houseNumber": in.HouseNumber,
		"zipCode":     in.ZipCode,
		"phoneNumber": in.PhoneNumber,
	}); err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.InsertOrder, params)
	if err != nil {
		return router.Result{}, err
	}
	orderID, _ := firstRow(rows).Int64("orderId")

	h.logger.Info(ctx, "order created", "order_id", orderID, "user_id", userID)
	return router.Result{Payload: MsgOrderCreated}, nil
}

// validateLine asks the database whether the product exists, is for sale
// and costs what the client claims.
func (h *Handlers) validateLine(ctx context.Context, line orderLine) error {
	if line.ProductID.Value <= 0 || line.Quantity.Value <= 0 || line.Price < 0 {
		return respond.BadRequest(MsgInvalidProduct)
	}
	rows, err := h.db.Call(ctx, procedures.ValidateProduct, gateway.Params{
		"productId": line.ProductID.Value,
		"price":     line.Price,
	})
	if err != nil {
		return err
	}
	ok := false
	if len(rows) > 0 {
		if ok, err = flag(procedures.ValidateProduct, rows, validColumn); err != nil {
			return err
		}
	}
	if !ok {
		return respond.BadRequest(MsgInvalidProduct).WithCause(fmt.Errorf("product %d rejected", line.ProductID.Value))
	}
	return nil
}

// orderAccount resolves the account an order is booked on.
func (h *Handlers) orderAccount(ctx context.Context, in createOrderRequest) (int64, error) {
	if id, ok := gate.UserIDFromContext(ctx); ok {
		return id, nil
	}

	emailIndex := h.sec.BlindIndex(in.Email)
	rows, err := h.db.Call(ctx, procedures.GetUserCredentials, gateway.Params{"userEmail": emailIndex})
	if err != nil {
		return 0, err
	}
	if id, ok := firstRow(rows).Int64("userId"); ok {
		return id, nil
	}

	params := gateway.Params{
		"emailIndex": emailIndex,
		"phoneIndex": h.sec.BlindIndex(in.PhoneNumber),
	}
	if err := h.encryptFields(params, map[string]string{
		"email":       in.Email,
		"phoneNumber": in.PhoneNumber,
		"name":        in.Name,
		"streetName":  in.StreetName,
		"houseNumber": in.HouseNumber,
		"zipCode":     in.ZipCode,
	}); err != nil {
		return 0, err
	}

	rows, err = h.db.Call(ctx, procedures.CreateGuestAccount, params)
	if err != nil {
		return 0, err
	}
	id, ok := firstRow(rows).Int64("userId")
	if !ok {
		return 0, respond.Internal(MsgUserNotFound).WithCause(errNoUserID)
	}
	return id, nil
}

type storedLine struct {
	ProductID int64   `json:"productId"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
}

func orderLines(lines []orderLine) []storedLine {
	out := make([]storedLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, storedLine{ProductID: l.ProductID.Value, Quantity: l.Quantity.Value, Price: l.Price})
	}
	return out
}

func applyDiscount(totalCents, percent int64) int64 {
	if percent <= 0 {
		return totalCents
	}
	percent = min(percent, 100)
	return totalCents - (totalCents*percent+50)/100
}
