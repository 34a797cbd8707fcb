package common

// SessionCookieName is the name of the HTTP-only cookie that carries the
// identity token between the browser and the API.
const SessionCookieName = "jwt"

// GenericErrorMessage is the only text a caller ever sees when a security
// primitive (hashing, encryption, token handling) fails.
const GenericErrorMessage = "an error occurred, please try again later!"

// ProcedureErrorMessage is returned to callers when a stored procedure call fails.
const ProcedureErrorMessage = "Database procedure error"
