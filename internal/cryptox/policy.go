package cryptox

// PasswordPolicy describes the minimum strength of a new password.
type PasswordPolicy struct {
	MinLength        int
	MinDigits        int
	RequireMixedCase bool
}

// DefaultPasswordPolicy is the policy enforced on account creation.
var DefaultPasswordPolicy = PasswordPolicy{
	MinLength:        6,
	MinDigits:        2,
	RequireMixedCase: true,
}

// Check reports whether password satisfies the policy. Length is counted in
// bytes. Only ASCII digits and ASCII letters count towards the digit and
// case requirements.
func (p PasswordPolicy) Check(password string) bool {
	if len(password) < p.MinLength {
		return false
	}

	var digits int
	var hasLower, hasUpper bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		}
	}

	if digits < p.MinDigits {
		return false
	}
	if p.RequireMixedCase && !(hasLower && hasUpper) {
		return false
	}
	return true
}

// VerifyPasswordPolicy checks password against DefaultPasswordPolicy.
func (m *SecurityManager) VerifyPasswordPolicy(password string) bool {
	return DefaultPasswordPolicy.Check(password)
}
