package domain

import "time"

// RentalPeriod is the contractual rental duration. Caller supplied dates do
// not change it.
const RentalPeriod = 7 * 24 * time.Hour

// Rental ties one user to one vehicle unit for a period.
type Rental struct {
	ID               int64      `json:"id"`
	RentalDate       time.Time  `json:"rentalDate"`
	ReturnDate       time.Time  `json:"returnDate"`
	ActualReturnDate *time.Time `json:"actualReturnDate,omitempty"`
	VehicleID        int64      `json:"vehicleId"`
	UserID           string     `json:"userId"`
}

// IsActive reports whether the vehicle has not been handed back yet.
func (r *Rental) IsActive() bool {
	return r.ActualReturnDate == nil
}

// IsOverdue reports whether the rental is active and past its due date.
// A rental due today is not overdue.
func (r *Rental) IsOverdue(today time.Time) bool {
	return r.IsActive() && DateOf(r.ReturnDate).Before(DateOf(today))
}

// CreateRentalRequest is the validated input for renting a vehicle. The dates
// are checked for presence only; the due date is always computed server side.
type CreateRentalRequest struct {
	VehicleID  int64  `json:"vehicleId" validate:"required,gt=0"`
	RentalDate string `json:"rentalDate" validate:"required,datetime=2006-01-02"`
	ReturnDate string `json:"returnDate" validate:"required,datetime=2006-01-02"`
}

// ReturnRentalRequest carries the date the vehicle was actually handed back.
type ReturnRentalRequest struct {
	ReturnDate string `json:"returnDate" validate:"required,datetime=2006-01-02"`
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from start to end. The
// result is negative when end is before start.
func DaysBetween(start, end time.Time) int64 {
	return int64(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}
