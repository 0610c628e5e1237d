package model

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Actor is the authenticated caller. For customers ID is the customer id.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Owns reports whether a customer actor is the given customer.
func (a Actor) Owns(customerID string) bool {
	return a.Role == RoleCustomer && a.ID != "" && a.ID == customerID
}

// CanAccess allows admins and the owning customer.
func (a Actor) CanAccess(customerID string) bool {
	return a.IsAdmin() || a.Owns(customerID)
}
