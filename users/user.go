// Package users implements the user record service: validation, id
// assignment and the create/get/update/delete contract over a store.Store.
package users

// User is a single user record.
//
// ID is assigned by the service on create and never changes afterwards.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// hasRequiredFields reports whether both mutable fields are present.
// Only emptiness is checked: whitespace-only values and malformed email
// addresses are accepted.
func hasRequiredFields(name, email string) bool {
	return name != "" && email != ""
}
