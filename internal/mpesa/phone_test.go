package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMSISDN(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"national trunk prefix", "0712345678", "254712345678"},
		{"international with plus", "+254712345678", "254712345678"},
		{"already canonical", "254712345678", "254712345678"},
		{"embedded whitespace", "0712 345 678", "254712345678"},
		{"leading and trailing whitespace", " +254712345678 ", "254712345678"},
		{"foreign number passes through", "44712345678", "44712345678"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMSISDN(tt.input))
		})
	}
}

func TestNormalizeMSISDNIdempotent(t *testing.T) {
	once := NormalizeMSISDN("0712345678")
	assert.Equal(t, once, NormalizeMSISDN(once))
}
