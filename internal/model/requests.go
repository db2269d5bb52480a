package model

type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type CreateOrderItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantidade"`
}

type CreateOrderRequest struct {
	City       string            `json:"cidade"`
	Weekday    int               `json:"dia_semana"`
	CEP        string            `json:"cep"`
	Street     string            `json:"rua"`
	Number     string            `json:"numero"`
	Complement string            `json:"complemento"`
	Items      []CreateOrderItem `json:"items"`
}

type PreferenceItem struct {
	ID       int     `json:"id"`
	Name     string  `json:"nome"`
	Price    float64 `json:"preco"`
	Quantity int     `json:"qtd"`
}

type PreferenceRequest struct {
	OrderID     string           `json:"orderId"`
	Items       []PreferenceItem `json:"items"`
	ShippingFee float64          `json:"frete"`
}

type VerifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

type DeliveryUpdateRequest struct {
	DeliveryStatus string `json:"delivery_status"`
	DeliveryNotes  string `json:"delivery_notes"`
	MarkDelivered  bool   `json:"markDelivered"`
}
