// Package handlers implements the storefront endpoints. Handlers validate
// typed request bodies, call stored procedures through the gateway and
// return results for the router to wrap in the response envelope.
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/dbx"
	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/gate"
	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
)

// Messages returned to clients.
const (
	MsgMissingParameters = "Missing parameters"
	MsgPermissionDenied  = gate.PermissionDeniedMessage
	MsgEmailInUse        = "Email is already in use"
	MsgPhoneInUse        = "Phone number is already in use"
	MsgPasswordsMismatch = "Passwords do not match"
	MsgPasswordPolicy    = "Password does not follow requirements"
	MsgInvalidCreds      = "Invalid credentials"
	MsgUserCreated       = "User created"
	MsgLoggedIn          = "Logged in"
	MsgLoggedOut         = "Logged out"
	MsgIsLoggedIn        = "You are logged in!"
	MsgNotLoggedIn       = "You are not logged in"
	MsgUserNotFound      = "User not found"
	MsgNoOrdersLeft      = "No orders left to return"
	MsgNoCity            = "No city found"
	MsgValidCoupon       = "Valid coupon code"
	MsgNoCoupon          = "No matching coupon"
	MsgInvalidCoupon     = "Invalid coupon"
	MsgInvalidProduct    = "Invalid product"
	MsgTotalMismatch     = "Total price does not match"
	MsgOrderCreated      = "Order created"
	MsgNoProduct         = "No product found"
	MsgDisplayToggled    = "Book display toggled"
)

// Caller runs stored procedures.
type Caller interface {
	Call(ctx context.Context, proc procedures.Procedure, params gateway.Params) ([]dbx.Row, error)
}

// Security is the credential security service used by the handlers.
type Security interface {
	GenerateSalt() (string, error)
	HashPassword(password, salt string) (string, error)
	VerifyPassword(candidate, storedHash, salt string) (bool, error)
	VerifyPasswordPolicy(password string) bool
	EncryptField(plaintext string) (string, error)
	DecryptField(blob string) (string, error)
	BlindIndex(value string) string
}

// Tokens issues session tokens.
type Tokens interface {
	Issue(subjectID int64) (string, error)
	Lifetime() time.Duration
}

type Handlers struct {
	db     Caller
	sec    Security
	tokens Tokens
	logger logging.Logger
	now    func() time.Time

	// dummy credentials verified for unknown users so that login takes the
	// same time whether or not the account exists
	dummyHash string
	dummySalt string
}

func New(db Caller, sec Security, tokens Tokens, logger logging.Logger) (*Handlers, error) {
	h := &Handlers{
		db:     db,
		sec:    sec,
		tokens: tokens,
		logger: logger.With("component", "handlers"),
		now:    time.Now,
	}

	salt, err := sec.GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash, err := sec.HashPassword("dummy-password-never-matches", salt)
	if err != nil {
		return nil, err
	}
	h.dummySalt, h.dummyHash = salt, hash

	return h, nil
}

func missing() *respond.Error {
	return respond.BadRequest(MsgMissingParameters)
}

// currentUser returns the subject stored by the authentication gate.
func currentUser(ctx context.Context) (int64, error) {
	id, ok := gate.UserIDFromContext(ctx)
	if !ok {
		return 0, respond.Unauthorized(MsgNotLoggedIn)
	}
	return id, nil
}

// firstRow returns the first row or nil.
func firstRow(rows []dbx.Row) dbx.Row {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// decryptColumns replaces the listed encrypted columns with plaintext in
// place. Columns that are absent or NULL are left alone.
func (h *Handlers) decryptColumns(rows []dbx.Row, cols ...string) error {
	for _, r := range rows {
		for _, c := range cols {
			blob, ok := r.String(c)
			if !ok || blob == "" {
				continue
			}
			plain, err := h.sec.DecryptField(blob)
			if err != nil {
				return err
			}
			r[c] = plain
		}
	}
	return nil
}

// encryptFields encrypts each value and stores it in params under its key.
func (h *Handlers) encryptFields(params gateway.Params, fields map[string]string) error {
	for k, v := range fields {
		enc, err := h.sec.EncryptField(v)
		if err != nil {
			return err
		}
		params[k] = enc
	}
	return nil
}

// piiColumns are stored encrypted in every table that carries them.
var piiColumns = []string{"email", "phoneNumber", "name", "streetName", "houseNumber", "zipCode"}

var errNoUserID = errors.New("procedure returned no userId")

// Answer columns of the check procedures.
const (
	countColumn = "count"
	validColumn = "valid"
)
