package distance

import (
	"math"
	"strings"
	"unicode"
)

const minAddressLength = 3

// ValidAddress is the fast-reject gate for address strings: after trimming,
// the address must be at least 3 characters and contain at least one letter
// or digit. Pure function, no side effects.
func ValidAddress(address string) bool {
	trimmed := strings.TrimSpace(address)
	if len(trimmed) < minAddressLength {
		return false
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// ValidCoordinates checks that both values are finite and inside the WGS84
// range ([-90,90] latitude, [-180,180] longitude).
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// ValidateRequest runs both gates over a request and reports the first
// offending field. Failing requests never reach the cache or the upstream.
func ValidateRequest(req Request) error {
	if !ValidAddress(req.OriginAddress) {
		return &ValidationError{Field: "originAddress", Reason: "must be at least 3 characters and contain a letter or digit"}
	}
	if !ValidAddress(req.DestinationAddress) {
		return &ValidationError{Field: "destinationAddress", Reason: "must be at least 3 characters and contain a letter or digit"}
	}
	if !ValidCoordinates(req.ReferenceLatitude, req.ReferenceLongitude) {
		return &ValidationError{Field: "referencePoint", Reason: "coordinates must be finite and within [-90,90] / [-180,180]"}
	}
	return nil
}
