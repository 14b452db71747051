package redirect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawIDValue(t *testing.T) {
	tests := []struct {
		name     string
		rawQuery string
		want     string
		wantErr  error
	}{
		{name: "empty", rawQuery: "", wantErr: errNoParams},
		{name: "only separators", rawQuery: "&&", wantErr: errNoParams},
		{name: "bare number", rawQuery: "5", want: "5"},
		{name: "bare word", rawQuery: "abc", want: "abc"},
		{name: "named id", rawQuery: "id=7", want: "7"},
		{name: "named id wins over first", rawQuery: "x=1&id=7", want: "7"},
		{name: "first value without id", rawQuery: "x=3&y=4", want: "3"},
		{name: "empty key and value", rawQuery: "=", want: "0"},
		{name: "empty id value", rawQuery: "id=", want: "0"},
		{name: "bare token named id", rawQuery: "id&x=2", want: "id"},
		{name: "escaped value", rawQuery: "id=%2D3", want: "-3"},
		{name: "bad escape", rawQuery: "id=%zz", wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rawIDValue(tt.rawQuery)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "42", want: 42},
		{in: "-1", want: -1},
		{in: "+8", want: 8},
		{in: "2147483647", want: 2147483647},
		{in: "-2147483648", want: -2147483648},
		{in: "2147483648", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: " 1", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
