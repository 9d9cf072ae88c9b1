package authn

// CountPasswordChecks wraps the dummy password check with a counter and
// returns a function undoing the wrap.
func CountPasswordChecks(n *int) (restore func()) {
	orig := burnPasswordCheck
	burnPasswordCheck = func(password string) {
		*n++
		orig(password)
	}
	return func() { burnPasswordCheck = orig }
}
