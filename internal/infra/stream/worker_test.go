package stream

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseTick(t *testing.T) {
	msg := []byte(`{"type":"ticker","symbol":"BTC","price":50000.5,"change_24h":2.1,"volume_24h":31000000,"timestamp":1756700000}`)

	tick, ok := parseTick(msg)
	if !ok {
		t.Fatal("Expected a valid tick")
	}
	if tick.Symbol != "BTC" {
		t.Errorf("Expected BTC, got %q", tick.Symbol)
	}
	if !tick.Price.Equal(decimal.NewFromFloat(50000.5)) {
		t.Errorf("Expected price 50000.5, got %v", tick.Price)
	}
	if !tick.Change24h.Equal(decimal.NewFromFloat(2.1)) {
		t.Errorf("Expected change 2.1, got %v", tick.Change24h)
	}
}

func TestParseTick_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", "hello"},
		{"wrong type", `{"type":"trade","symbol":"BTC","price":1}`},
		{"missing symbol", `{"type":"ticker","price":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseTick([]byte(tt.msg)); ok {
				t.Errorf("Expected %s to be rejected", tt.name)
			}
		})
	}
}
