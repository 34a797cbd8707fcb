// Package procedures enumerates the stored procedures the API may call.
// The set is closed: a procedure that is not declared here cannot be
// invoked through the gateway.
package procedures

// Procedure identifies one stored procedure.
type Procedure int

const (
	unknown Procedure = iota
	CheckEmailUnique
	CheckUserPhoneExists
	CreateGuestAccount
	CreateUser
	GetCityByZipCode
	GetOrderDetails
	GetFilteredOrderDetails
	GetProductByID
	GetProducts
	GetUserCredentials
	GetUserInformation
	GetUserOrdersDetails
	SearchProducts
	InsertOrder
	ToggleProductVisibility
	ValidateProduct
	VerifyCoupon
	sentinel
)

var names = [...]string{
	CheckEmailUnique:        "CheckEmailUnique",
	CheckUserPhoneExists:    "CheckUserPhoneExists",
	CreateGuestAccount:      "CreateGuestAccount",
	CreateUser:              "CreateUser",
	GetCityByZipCode:        "GetCityByZipCode",
	GetOrderDetails:         "GetOrderDetails",
	GetFilteredOrderDetails: "GetFilteredOrderDetails",
	GetProductByID:          "GetProductById",
	GetProducts:             "GetProducts",
	GetUserCredentials:      "GetUserCredentials",
	GetUserInformation:      "GetUserInformation",
	GetUserOrdersDetails:    "GetUserOrdersDetails",
	SearchProducts:          "SearchProducts",
	InsertOrder:             "InsertOrder",
	ToggleProductVisibility: "ToggleProductVisibility",
	ValidateProduct:         "ValidateProduct",
	VerifyCoupon:            "VerifyCoupon",
	sentinel:                "",
}

// String returns the database name of the procedure.
func (p Procedure) String() string {
	if !p.Valid() {
		return "Procedure(invalid)"
	}
	return names[p]
}

// Valid reports whether p is one of the declared procedures.
func (p Procedure) Valid() bool {
	return p > unknown && p < sentinel
}

// All returns every declared procedure in declaration order.
func All() []Procedure {
	out := make([]Procedure, 0, int(sentinel)-1)
	for p := unknown + 1; p < sentinel; p++ {
		out = append(out, p)
	}
	return out
}
