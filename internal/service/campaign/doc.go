// Package campaign implements campaign lifecycle management.
//
// The service layer owns the status machine (draft, scheduled, active,
// paused, completed, cancelled) and the operator actions that drive it.
// It depends on the Repository interface defined in this package and never
// imports from api/; repository implementations live in
// repository/postgres/.
package campaign
