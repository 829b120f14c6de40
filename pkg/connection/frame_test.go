package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantCode byte
		wantOK   bool
	}{
		{"valid frame", []byte{0xa1, 0x03, 0x3c, 0x00, 0x00}, 0x3c, true},
		{"player change frame", []byte{0xa1, 0x03, 0x54, 0x00, 0x00}, 0x54, true},
		{"too short", []byte{0xa1, 0x03, 0x3c}, 0, false},
		{"too long", []byte{0xa1, 0x03, 0x3c, 0x00, 0x00, 0x00}, 0, false},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := extractCode(tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
