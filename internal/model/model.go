package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusPaid     PaymentStatus = "PAID"
	StatusCanceled PaymentStatus = "CANCELED"
)

// FromProcessorStatus maps the processor's payment status vocabulary onto the
// local three-state status. Unknown values stay PENDING: the processor keeps
// notifying until the payment settles one way or the other.
func FromProcessorStatus(raw string) PaymentStatus {
	switch strings.ToLower(raw) {
	case "approved":
		return StatusPaid
	case "rejected", "cancelled", "charged_back", "refunded":
		return StatusCanceled
	default:
		return StatusPending
	}
}

type DeliveryStatus string

const (
	DeliveryNew       DeliveryStatus = "NEW"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

func ValidDeliveryStatus(s string) bool {
	switch DeliveryStatus(s) {
	case DeliveryNew, DeliveryInTransit, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

type Order struct {
	ID             string         `json:"id"`
	UserID         int            `json:"user_id"`
	City           string         `json:"cidade"`
	Weekday        int            `json:"dia_semana"`
	CEP            string         `json:"cep"`
	Street         string         `json:"rua"`
	Number         string         `json:"numero"`
	Complement     string         `json:"complemento"`
	Subtotal       float64        `json:"subtotal"`
	ShippingFee    float64        `json:"frete"`
	Total          float64        `json:"total"`
	Status         PaymentStatus  `json:"status"`
	PreferenceID   *string        `json:"mp_preference_id,omitempty"`
	PaymentID      *string        `json:"mp_payment_id,omitempty"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	DeliveryNotes  string         `json:"delivery_notes,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Items          []OrderItem    `json:"items,omitempty"`
}

type OrderItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantidade"`
	UnitPrice float64 `json:"preco_unit"`
	Subtotal  float64 `json:"subtotal"`
}

type Product struct {
	ID     int     `json:"id"`
	Name   string  `json:"nome"`
	Price  float64 `json:"preco"`
	Active bool    `json:"ativo"`
}

// CapacityEntry is the per-weekday unit limit for one product, configured by
// the back office.
type CapacityEntry struct {
	Weekday   int `json:"dia_semana"`
	ProductID int `json:"product_id"`
	Limit     int `json:"limite_total"`
}

type User struct {
	ID    int
	Login string
	Role  string
}

// OrderFilter narrows the admin order listing. Zero values mean "no filter".
type OrderFilter struct {
	PaymentStatus  string
	DeliveryStatus string
	City           string
	Term           string
	Limit          int
}
