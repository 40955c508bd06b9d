package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
		errMsg  string
	}{
		{name: "vehicle number", id: "KA01AB1234"},
		{name: "uuid", id: "4f1c2a9e-0b7d-4d0e-9a59-1f1d0c7c5b11"},
		{name: "coordinate fallback id", id: "12.9716,77.5946"},
		{name: "imei with prefix", id: "imei:356938035643809"},
		{name: "empty", id: "", wantErr: true, errMsg: "id cannot be empty"},
		{name: "too long", id: strings.Repeat("a", 101), wantErr: true, errMsg: "id too long (max 100 characters)"},
		{name: "script tag", id: "KA01<script>", wantErr: true, errMsg: "id contains invalid characters"},
		{name: "sql injection", id: "x'; DROP TABLE geofences; --", wantErr: true, errMsg: "id contains invalid characters"},
		{name: "path traversal", id: "../../etc/passwd", wantErr: true, errMsg: "id contains invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateVehicleID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "plain vehicle number", id: "KA01AB1234"},
		{name: "plate with spaces", id: "MH 12 AB 1234"},
		{name: "plate with slashes", id: "DL/1C/1234"},
		{name: "coordinate fallback id", id: "19.07,72.87"},
		{name: "non-latin plate", id: "ТС 123 77"},
		{name: "empty", id: "", wantErr: true},
		{name: "blank", id: "   ", wantErr: true},
		{name: "too long", id: strings.Repeat("a", 101), wantErr: true},
		{name: "control character", id: "KA01\x00AB", wantErr: true},
		{name: "newline", id: "KA01\nAB", wantErr: true},
		{name: "invalid utf8", id: "KA01\xffAB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVehicleID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePoint(t *testing.T) {
	tests := []struct {
		name       string
		lat, lng   float64
		wantFields []string
	}{
		{name: "valid", lat: 12.97, lng: 77.59},
		{name: "poles and antimeridian", lat: -90, lng: 180},
		{name: "latitude out of range", lat: 90.1, lng: 0, wantFields: []string{"lat"}},
		{name: "longitude out of range", lat: 0, lng: -180.5, wantFields: []string{"lng"}},
		{name: "both out of range", lat: 200, lng: 200, wantFields: []string{"lat", "lng"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidatePoint(tt.lat, tt.lng, nil)
			assert.Len(t, errs, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "North Yard", SanitizeInput("  <b>North Yard</b> "))
	assert.Equal(t, "alert('x')", SanitizeInput("<script>alert('x')</script>"))
	assert.Equal(t, "", SanitizeInput("   "))
}
