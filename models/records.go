package models

// HeaderInfo is the banner block of a listing page: address, flat type,
// floor area and asking price.
type HeaderInfo struct {
	Address    string
	SubAddress string
	PostalCode string // empty when it could not be parsed from the sub-address
	FlatType   string
	AreaSqm    float64
	PriceSGD   float64
}

// DetailsInfo is the expandable details section of a listing page.
// Fields parsed out of free-form text keep the raw text alongside the parsed
// value so the raw form survives as a fallback column in the output table.
type DetailsInfo struct {
	Town                string
	StoreyRange         string
	RemainingLease      string
	RemainingLeaseYears *float64 // nil when RemainingLease did not parse
	NumBedrooms         int
	NumBathrooms        int
	Balcony             string
	Contra              string
	ExtensionOfStay     string
	Upgrading           string
	EthnicEligibility   string
	SPREligibility      string
	Description         string
	LastUpdated         string
	LastUpdatedDate     string // YYYY-MM-DD, empty when LastUpdated did not parse
}

// ListingInfo is one fully scraped listing. Nearest is nil until the enrich
// stage has resolved the nearest station for the listing's postal code.
type ListingInfo struct {
	URL     string
	Header  HeaderInfo
	Details DetailsInfo
	Nearest *NearestStationInfo
}

// Station is one transit station with precomputed coordinates.
type Station struct {
	Name string
	Lat  float64
	Lon  float64
}

// NearestStationInfo describes the transit station nearest to a postal code.
type NearestStationInfo struct {
	Station          string
	StraightLineKm   float64
	WalkingKm        float64
	WalkingDurationM float64
}
