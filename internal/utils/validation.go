package utils

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// Zone uuids and other server-issued ids.
	validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.,:-]+$`)

	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
)

// ValidateID validates that an ID is safe and within reasonable limits
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if len(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}

	if !validIDPattern.MatchString(id) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

// ValidateVehicleID accepts any printable id the normalizer can publish,
// such as registration plates with spaces ("MH 12 AB 1234").
func ValidateVehicleID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id cannot be empty")
	}
	if !utf8.ValidString(id) {
		return errors.New("id must be valid UTF-8")
	}
	if utf8.RuneCountInString(id) > 100 {
		return errors.New("id too long (max 100 characters)")
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return errors.New("id contains invalid characters")
		}
	}
	return nil
}

func ValidateLatitude(lat float64) error {
	if lat < -90.0 || lat > 90.0 {
		return errors.New("latitude must be between -90 and 90")
	}
	return nil
}

func ValidateLongitude(lng float64) error {
	if lng < -180.0 || lng > 180.0 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// ValidatePoint collects coordinate range errors under "lat" and "lng".
func ValidatePoint(lat, lng float64, fieldErrors map[string][]string) map[string][]string {
	if fieldErrors == nil {
		fieldErrors = make(map[string][]string)
	}
	if err := ValidateLatitude(lat); err != nil {
		fieldErrors["lat"] = append(fieldErrors["lat"], err.Error())
	}
	if err := ValidateLongitude(lng); err != nil {
		fieldErrors["lng"] = append(fieldErrors["lng"], err.Error())
	}
	return fieldErrors
}

// SanitizeInput removes HTML tags and surrounding whitespace from free text
// such as zone names.
func SanitizeInput(input string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(input, ""))
}
