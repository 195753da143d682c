package pipeline

import (
	"strconv"

	"hdbscout/models"
)

// Column names of the output tables. The listing URL doubles as the row
// identifier that resumption is keyed on. The fallback columns carry the raw
// scraped text for rows where the parsed form came up empty.
const (
	colLink              = "Link"
	colAddress           = "Address"
	colPostalCode        = "Postal code"
	colFlatType          = "HDB type"
	colEthnic            = "Ethnic eligibility"
	colAreaSqm           = "Area (sqm)"
	colPrice             = "Price ($)"
	colStoreyRange       = "Storey range"
	colRemainingLease    = "Remaining lease (years)"
	colLastUpdated       = "Last updated date"
	colDescription       = "Free-form description (provided by seller)"
	colBedrooms          = "Number of bedrooms"
	colBathrooms         = "Number of bathrooms"
	colBalcony           = "Balcony"
	colUpgrading         = "Upcoming upgrading plans?"
	colTown              = "Town"
	colSPR               = "SPR eligibility"
	colContra            = "Contra"
	colExtensionOfStay   = "Extension of stay"
	colSubAddress        = "Sub-address [fallback if postal code is empty]"
	colRemainingLeaseRaw = "Remaining lease [fallback if parsed remaining lease is empty]"
	colLastUpdatedRaw    = "Last updated [fallback if last updated date is empty]"
	colNearestStation    = "Nearest MRT station"
	colWalkingDuration   = "Walking duration to MRT (mins)"
	colStraightLineDist  = "Straight line distance to MRT (km)"
	colWalkingDist       = "Walking distance to MRT (km)"
	colStation           = "Station"
	colStationLatitude   = "Latitude"
	colStationLongitude  = "Longitude"
)

func baseInfoHeader() []string {
	return []string{
		colLink,
		colAddress,
		colPostalCode,
		colFlatType,
		colEthnic,
		colAreaSqm,
		colPrice,
		colStoreyRange,
		colRemainingLease,
		colLastUpdated,
		colDescription,
		colBedrooms,
		colBathrooms,
		colBalcony,
		colUpgrading,
		colTown,
		colSPR,
		colContra,
		colExtensionOfStay,
		colSubAddress,
		colRemainingLeaseRaw,
		colLastUpdatedRaw,
	}
}

func fullInfoHeader() []string {
	return append(baseInfoHeader(),
		colNearestStation,
		colWalkingDuration,
		colStraightLineDist,
		colWalkingDist,
	)
}

func stationHeader() []string {
	return []string{colStation, colStationLatitude, colStationLongitude}
}

func baseInfoRow(info *models.ListingInfo) []string {
	lease := ""
	if info.Details.RemainingLeaseYears != nil {
		lease = formatFloat(*info.Details.RemainingLeaseYears)
	}
	return []string{
		info.URL,
		info.Header.Address,
		info.Header.PostalCode,
		info.Header.FlatType,
		info.Details.EthnicEligibility,
		formatFloat(info.Header.AreaSqm),
		formatFloat(info.Header.PriceSGD),
		info.Details.StoreyRange,
		lease,
		info.Details.LastUpdatedDate,
		info.Details.Description,
		strconv.Itoa(info.Details.NumBedrooms),
		strconv.Itoa(info.Details.NumBathrooms),
		info.Details.Balcony,
		info.Details.Upgrading,
		info.Details.Town,
		info.Details.SPREligibility,
		info.Details.Contra,
		info.Details.ExtensionOfStay,
		info.Header.SubAddress,
		info.Details.RemainingLease,
		info.Details.LastUpdated,
	}
}

// fullInfoRow carries a base-info row over unchanged and appends the
// nearest-station columns, which stay empty when no station was resolved.
func fullInfoRow(row map[string]string, nearest *models.NearestStationInfo) []string {
	out := make([]string, 0, len(fullInfoHeader()))
	for _, col := range baseInfoHeader() {
		out = append(out, row[col])
	}
	name, walkMins, straightKm, walkKm := "", "", "", ""
	if nearest != nil {
		name = nearest.Station
		walkMins = formatFloat(nearest.WalkingDurationM)
		straightKm = formatFloat(nearest.StraightLineKm)
		walkKm = formatFloat(nearest.WalkingKm)
	}
	return append(out, name, walkMins, straightKm, walkKm)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
