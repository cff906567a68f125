package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseOrderType(t *testing.T) {
	tests := []struct {
		in     string
		want   OrderType
		wantOK bool
	}{
		{"Dine-in", DineIn, true},
		{"dine-IN", DineIn, true},
		{"  takeout ", Takeout, true},
		{"TAKEOUT", Takeout, true},
		{"delivery", "", false},
		{"dine_in", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOrderType(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseOrderType(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   OrderStatus
		wantOK bool
	}{
		{"pending", StatusPending, true},
		{"PREPARING", StatusPreparing, true},
		{"Ready", StatusReady, true},
		{"completed", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"canceled", "", false},
		{"shipped", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseOrderStatus(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseOrderStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoyaltyPointsFor(t *testing.T) {
	tests := []struct {
		total string
		want  int
	}{
		{"47.80", 40},
		{"9.99", 0},
		{"10.00", 10},
		{"0", 0},
		{"129.99", 120},
		{"-15", 0},
	}

	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			if got := LoyaltyPointsFor(decimal.RequireFromString(tt.total)); got != tt.want {
				t.Errorf("LoyaltyPointsFor(%s) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}

func TestOrderRoutingKey(t *testing.T) {
	if got := OrderRoutingKey(DineIn, 3); got != "orders.dine_in.3" {
		t.Errorf("OrderRoutingKey() = %q", got)
	}
	if got := OrderRoutingKey(Takeout, 12); got != "orders.takeout.12" {
		t.Errorf("OrderRoutingKey() = %q", got)
	}
}
