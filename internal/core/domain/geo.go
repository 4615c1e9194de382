package domain

// GeoPoint represents a geographic coordinate (WGS 84).
// Values outside the valid latitude/longitude ranges are passed through untouched.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Origin is the resolved starting point of a route query.
type Origin struct {
	City string `json:"city"`
	GeoPoint
}

// LocationReport is the payload returned by a location provider.
// Latitude and Longitude are nil when the provider did not supply them.
type LocationReport struct {
	IP          string   `json:"ip,omitempty"`
	City        string   `json:"city"`
	RegionName  string   `json:"region_name,omitempty"`
	CountryName string   `json:"country_name,omitempty"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Warning     string   `json:"warning,omitempty"`
}

// HasCoordinates reports whether both coordinates are present.
func (r *LocationReport) HasCoordinates() bool {
	return r != nil && r.Latitude != nil && r.Longitude != nil
}

// DefaultLocation is the location a location provider answers with when it
// cannot resolve the caller.
type DefaultLocation struct {
	City        string
	RegionName  string
	CountryName string
	Point       GeoPoint
}

// Report builds a LocationReport for the default location carrying warning.
func (d DefaultLocation) Report(warning string) *LocationReport {
	lat, lon := d.Point.Latitude, d.Point.Longitude
	return &LocationReport{
		City:        d.City,
		RegionName:  d.RegionName,
		CountryName: d.CountryName,
		Latitude:    &lat,
		Longitude:   &lon,
		Warning:     warning,
	}
}
