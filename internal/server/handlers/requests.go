package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// flexInt accepts a JSON number or a numeric string, so the same request
// struct serves bodies and query strings.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %q", b)
	}
	f.Value, f.Set = n, true
	return nil
}

type page struct {
	TotalReceivedItems flexInt `json:"totalReceivedItems"`
	Limit              flexInt `json:"limit"`
}

// resolve applies defaults and bounds: limit defaults to 12 and is capped
// at 100; the offset must not be negative.
func (p page) resolve() (offset, limit int64, err error) {
	offset, limit = p.TotalReceivedItems.Value, defaultPageSize
	if offset < 0 {
		return 0, 0, missing()
	}
	if p.Limit.Set {
		if p.Limit.Value <= 0 {
			return 0, 0, missing()
		}
		limit = min(p.Limit.Value, maxPageSize)
	}
	return offset, limit, nil
}

type createUserRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	VerifyPassword string `json:"verifyPassword"`
	HouseNumber    string `json:"houseNumber"`
	ZipCode        string `json:"zipCode"`
	StreetName     string `json:"streetName"`
	PhoneNumber    string `json:"phoneNumber"`
}

func (r createUserRequest) validate() error {
	if anyBlank(r.Name, r.Email, r.Password, r.VerifyPassword, r.HouseNumber, r.ZipCode, r.StreetName, r.PhoneNumber) {
		return missing()
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) validate() error {
	if anyBlank(r.Email, r.Password) {
		return missing()
	}
	return nil
}

type zipCodeRequest struct {
	ZipCode string `json:"zipCode"`
}

type couponRequest struct {
	Coupon string `json:"coupon"`
}

type searchRequest struct {
	page
	SearchInput string `json:"searchInput"`
}

type productRequest struct {
	ProductID flexInt `json:"productId"`
}

type toggleRequest struct {
	BookID flexInt `json:"bookId"`
}

type orderLine struct {
	ProductID flexInt `json:"productId"`
	Quantity  flexInt `json:"quantity"`
	Price     float64 `json:"price"`
}

type createOrderRequest struct {
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	StreetName  string      `json:"streetName"`
	ZipCode     string      `json:"zipCode"`
	HouseNumber string      `json:"houseNumber"`
	PhoneNumber string      `json:"phoneNumber"`
	City        string      `json:"city"`
	Coupon      string      `json:"coupon"`
	Products    []orderLine `json:"products"`
	TotalPrice  *float64    `json:"totalPrice"`
}

func (r createOrderRequest) validate() error {
	if anyBlank(r.Email, r.Name, r.StreetName, r.ZipCode, r.HouseNumber, r.PhoneNumber, r.City) ||
		len(r.Products) == 0 || r.TotalPrice == nil {
		return missing()
	}
	for _, l := range r.Products {
		if !l.ProductID.Set || !l.Quantity.Set {
			return missing()
		}
	}
	return nil
}

// totalCents sums the order lines in cents.
func (r createOrderRequest) totalCents() int64 {
	var sum int64
	for _, l := range r.Products {
		sum += cents(l.Price) * l.Quantity.Value
	}
	return sum
}

func cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func anyBlank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
