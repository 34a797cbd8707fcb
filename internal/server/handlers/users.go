package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/dbx"
	"github.com/dmitrijs2005/bookclub/internal/server/auth"
	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/dmitrijs2005/bookclub/internal/server/router"
)

// CreateUser registers an account and starts a session for it.
func (h *Handlers) CreateUser(ctx context.Context, req router.Request) (router.Result, error) {
	var in createUserRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if err := in.validate(); err != nil {
		return router.Result{}, err
	}
	if in.Password != in.VerifyPassword {
		return router.Result{}, respond.BadRequest(MsgPasswordsMismatch)
	}
	if !h.sec.VerifyPasswordPolicy(in.Password) {
		return router.Result{}, respond.BadRequest(MsgPasswordPolicy)
	}

	emailIndex := h.sec.BlindIndex(in.Email)
	phoneIndex := h.sec.BlindIndex(in.PhoneNumber)

	taken, err := h.exists(ctx, procedures.CheckEmailUnique, gateway.Params{"userEmail": emailIndex})
	if err != nil {
		return router.Result{}, err
	}
	if taken {
		return router.Result{}, respond.Conflict(MsgEmailInUse)
	}

	taken, err = h.exists(ctx, procedures.CheckUserPhoneExists, gateway.Params{"userPhone": phoneIndex})
	if err != nil {
		return router.Result{}, err
	}
	if taken {
		return router.Result{}, respond.Conflict(MsgPhoneInUse)
	}

	salt, err := h.sec.GenerateSalt()
	if err != nil {
		return router.Result{}, err
	}
	hash, err := h.sec.HashPassword(in.Password, salt)
	if err != nil {
		return router.Result{}, err
	}

	params := gateway.Params{
		"emailIndex": emailIndex,
		"phoneIndex": phoneIndex,
		"password":   hash,
		"salt":       salt,
	}
	if err := h.encryptFields(params, map[string]string{
		"email":       in.Email,
		"phoneNumber": in.PhoneNumber,
		"name":        in.Name,
		"streetName":  in.StreetName,
		"houseNumber": in.HouseNumber,
		"zipCode":     in.ZipCode,
	}); err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.CreateUser, params)
	if err != nil {
		return router.Result{}, err
	}
	userID, ok := firstRow(rows).Int64("userId")
	if !ok {
		return router.Result{}, respond.Internal(MsgUserNotFound).WithCause(errNoUserID)
	}

	cookie, err := h.sessionCookie(userID)
	if err != nil {
		return router.Result{}, err
	}

	h.logger.Info(ctx, "user created", "user_id", userID)
	return router.Result{Payload: MsgUserCreated, Cookies: []*http.Cookie{cookie}}, nil
}

// LoginUser checks credentials and starts a session. Unknown accounts and
// wrong passwords produce the same response.
func (h *Handlers) LoginUser(ctx context.Context, req router.Request) (router.Result, error) {
	var in loginRequest
	if err := req.Decode(&in); err != nil {
		return router.Result{}, err
	}
	if err := in.validate(); err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.GetUserCredentials, gateway.Params{"userEmail": h.sec.BlindIndex(in.Email)})
	if err != nil {
		return router.Result{}, err
	}

	row := firstRow(rows)
	userID, hasID := row.Int64("userId")
	hash, _ := row.String("password")
	salt, _ := row.String("salt")
	if !hasID {
		hash, salt = h.dummyHash, h.dummySalt
	}

	match, err := h.sec.VerifyPassword(in.Password, hash, salt)
	if err != nil {
		return router.Result{}, err
	}
	if !hasID || !match {
		h.logger.Info(ctx, "login rejected", "known_account", hasID)
		return router.Result{}, respond.Forbidden(MsgInvalidCreds)
	}

	cookie, err := h.sessionCookie(userID)
	if err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: MsgLoggedIn, Cookies: []*http.Cookie{cookie}}, nil
}

// LogoutUser overwrites the session cookie with an expired one.
func (h *Handlers) LogoutUser(_ context.Context, _ router.Request) (router.Result, error) {
	return router.Result{Payload: MsgLoggedOut, Cookies: []*http.Cookie{auth.ExpiredSessionCookie(h.now())}}, nil
}

// VerifyLoggedIn confirms the request carries a valid session.
func (h *Handlers) VerifyLoggedIn(ctx context.Context, _ router.Request) (router.Result, error) {
	if _, err := currentUser(ctx); err != nil {
		return router.Result{}, err
	}
	return router.Result{Payload: MsgIsLoggedIn}, nil
}

// GetUserBillingInfo returns the decrypted billing details of the caller.
func (h *Handlers) GetUserBillingInfo(ctx context.Context, _ router.Request) (router.Result, error) {
	userID, err := currentUser(ctx)
	if err != nil {
		return router.Result{}, err
	}

	rows, err := h.db.Call(ctx, procedures.GetUserInformation, gateway.Params{"userId": userID})
	if err != nil {
		return router.Result{}, err
	}
	if len(rows) == 0 {
		return router.Result{}, respond.NotFound(MsgUserNotFound)
	}

	row := rows[:1]
	if err := h.decryptColumns(row, piiColumns...); err != nil {
		return router.Result{}, err
	}

	info := map[string]any{}
	for _, c := range append([]string{"city"}, piiColumns...) {
		if v, ok := row[0][c]; ok {
			info[c] = v
		}
	}
	return router.Result{Payload: info}, nil
}

func (h *Handlers) sessionCookie(userID int64) (*http.Cookie, error) {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		return nil, err
	}
	return auth.NewSessionCookie(token, h.now(), h.tokens.Lifetime()), nil
}

// exists reads the count column of the single row returned by a
// uniqueness check. A missing row or an unreadable count is a procedure
// failure, never a negative answer.
func (h *Handlers) exists(ctx context.Context, proc procedures.Procedure, params gateway.Params) (bool, error) {
	rows, err := h.db.Call(ctx, proc, params)
	if err != nil {
		return false, err
	}
	return flag(proc, rows, countColumn)
}

func flag(proc procedures.Procedure, rows []dbx.Row, col string) (bool, error) {
	if len(rows) == 0 {
		return false, fmt.Errorf("%w: %s returned no rows", common.ErrProcedure, proc)
	}
	v, ok := rows[0].Flag(col)
	if !ok {
		return false, fmt.Errorf("%w: %s returned unreadable %q column", common.ErrProcedure, proc, col)
	}
	return v, nil
}
