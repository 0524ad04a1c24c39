package domain

// RentalNotice carries what a rental notification needs to render: the
// rental with its resolved owner and vehicle.
type RentalNotice struct {
	User    *User
	Vehicle *Vehicle
	Rental  *Rental
}
