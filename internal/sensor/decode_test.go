package sensor

import (
	"errors"
	"testing"
)

func TestDecodeTelemetry(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKeys []string
		wantVals []string
		wantErr  bool
	}{
		{
			name:     "preserves key order",
			payload:  `{"temperature": 30.5, "humidity": 60, "dust": 12}`,
			wantKeys: []string{"temperature", "humidity", "dust"},
			wantVals: []string{"30.5", "60", "12"},
		},
		{
			name:     "repeated key keeps first position and last value",
			payload:  `{"dust": 1, "humidity": 2, "dust": 3}`,
			wantKeys: []string{"dust", "humidity"},
			wantVals: []string{"3", "2"},
		},
		{
			name:     "non-numeric values are kept raw",
			payload:  `{"firmware": "1.2.0", "uptime": {"s": 5}}`,
			wantKeys: []string{"firmware", "uptime"},
			wantVals: []string{`"1.2.0"`, `{"s": 5}`},
		},
		{
			name:     "empty object",
			payload:  `{}`,
			wantKeys: nil,
		},
		{name: "array", payload: `[1, 2]`, wantErr: true},
		{name: "number", payload: `42`, wantErr: true},
		{name: "truncated", payload: `{"dust": 4`, wantErr: true},
		{name: "trailing object", payload: `{"dust": 4}{"dust": 5}`, wantErr: true},
		{name: "empty payload", payload: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := DecodeTelemetry([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeTelemetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Errorf("error = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if len(fields) != len(tt.wantKeys) {
				t.Fatalf("got %d fields, want %d", len(fields), len(tt.wantKeys))
			}
			for i, f := range fields {
				if f.Key != tt.wantKeys[i] {
					t.Errorf("field %d key = %q, want %q", i, f.Key, tt.wantKeys[i])
				}
				if string(f.Value) != tt.wantVals[i] {
					t.Errorf("field %d value = %s, want %s", i, f.Value, tt.wantVals[i])
				}
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"30.5", 30.5, false},
		{"-4", -4, false},
		{"1e3", 1000, false},
		{`"42"`, 42, false},
		{`"high"`, 0, true},
		{"true", 0, true},
		{"null", 0, true},
		{"1e400", 0, true},
		{`{"v": 1}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseValue([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseValue(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseValue(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
