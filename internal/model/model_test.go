package model

import "testing"

func TestFromProcessorStatus(t *testing.T) {
	tests := []struct {
		processor string
		want      PaymentStatus
	}{
		{"approved", StatusPaid},
		{"rejected", StatusCanceled},
		{"cancelled", StatusCanceled},
		{"charged_back", StatusCanceled},
		{"refunded", StatusCanceled},
		{"pending", StatusPending},
		{"in_process", StatusPending},
		{"authorized", StatusPending},
		{"something_new", StatusPending},
		{"", StatusPending},
		{"APPROVED", StatusPaid},
		{"Rejected", StatusCanceled},
	}

	for _, tt := range tests {
		if got := FromProcessorStatus(tt.processor); got != tt.want {
			t.Errorf("FromProcessorStatus(%q) = %s; want %s", tt.processor, got, tt.want)
		}
	}
}

func TestValidDeliveryStatus(t *testing.T) {
	for _, s := range []string{"NEW", "IN_TRANSIT", "DELIVERED", "FAILED"} {
		if !ValidDeliveryStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	for _, s := range []string{"", "new", "SHIPPED", "CANCELED"} {
		if ValidDeliveryStatus(s) {
			t.Errorf("expected %s to be invalid", s)
		}
	}
}
