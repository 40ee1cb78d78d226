package ledger

// Address identifies a principal (an account such as an owner or a fulfilling node) or
// an actor (a broker or requester instance). The zero value is not a valid address.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}
