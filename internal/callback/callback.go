// Package callback encodes the compact action tokens carried on inline
// keyboard buttons. A token is "name" or "name:arg1:arg2". The separator is
// not escapable; an argument containing ":" is a caller error.
package callback

import "strings"

const sep = ":"

// Action names used by the router.
const (
	Balance       = "balance"
	PaymentsLast  = "payments_last"
	CheckPayment  = "check_payment"
	Withdraw      = "withdraw"
	Cancel        = "cancel"
	DeleteMessage = "delete_message"
)

// Pack joins an action name and its positional arguments into a token.
func Pack(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + sep + strings.Join(args, sep)
}

// Unpack splits a token into its action name and arguments. Decoding never
// fails: an empty token yields ("", nil) and a token without a separator
// yields (token, nil).
func Unpack(token string) (string, []string) {
	if token == "" {
		return "", nil
	}
	parts := strings.Split(token, sep)
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[0], parts[1:]
}

// Is reports whether the token is exactly the given action name.
func Is(token, name string) bool {
	return token == name
}

// HasPrefix reports whether the token is the given action, with or without
// arguments. "payments_page:last:3" matches "payments_page";
// "payments_page2" does not.
func HasPrefix(token, name string) bool {
	return token == name || strings.HasPrefix(token, name+sep)
}
