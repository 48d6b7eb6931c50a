package types

// AddressSnapshot is the delivery address copied onto an order at
// placement time. Orders keep their own copy; later edits to the address
// book never rewrite history.
type AddressSnapshot struct {
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone"`
}
