package enums

// TokenType discriminates signed tokens so one kind cannot stand in for another.
type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypePasswordReset TokenType = "password_reset"
)

func (t TokenType) String() string {
	return string(t)
}

func (t TokenType) IsValid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypePasswordReset:
		return true
	default:
		return false
	}
}
