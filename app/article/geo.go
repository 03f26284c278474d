package article

import "strings"

// GeoType classifies the geographic feature an article describes.
type GeoType int

const (
	GeoTypeUnknown GeoType = iota
	GeoTypeCountry
	GeoTypeSatellite
	GeoTypeAdm1st
	GeoTypeAdm2nd
	GeoTypeAdm3rd
	GeoTypeCity
	GeoTypeAirport
	GeoTypeMountain
	GeoTypeIsle
	GeoTypeWaterBody
	GeoTypeForest
	GeoTypeRiver
	GeoTypeGlacier
	GeoTypeEvent
	GeoTypeEdu
	GeoTypePass
	GeoTypeRailwayStation
	GeoTypeLandmark
)

// GeoData type names, indexed by GeoType.
var geoTypeNames = [...]string{
	GeoTypeUnknown:        "unknown",
	GeoTypeCountry:        "country",
	GeoTypeSatellite:      "satellite",
	GeoTypeAdm1st:         "adm1st",
	GeoTypeAdm2nd:         "adm2nd",
	GeoTypeAdm3rd:         "adm3rd",
	GeoTypeCity:           "city",
	GeoTypeAirport:        "airport",
	GeoTypeMountain:       "mountain",
	GeoTypeIsle:           "isle",
	GeoTypeWaterBody:      "waterbody",
	GeoTypeForest:         "forest",
	GeoTypeRiver:          "river",
	GeoTypeGlacier:        "glacier",
	GeoTypeEvent:          "event",
	GeoTypeEdu:            "edu",
	GeoTypePass:           "pass",
	GeoTypeRailwayStation: "railwaystation",
	GeoTypeLandmark:       "landmark",
}

func (g GeoType) String() string {
	if g < 0 || int(g) >= len(geoTypeNames) {
		return geoTypeNames[GeoTypeUnknown]
	}
	return geoTypeNames[g]
}

// ParseGeoType maps a GeoData type name to its GeoType. Unrecognized names
// map to GeoTypeUnknown.
func ParseGeoType(name string) GeoType {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range geoTypeNames {
		if n == name {
			return GeoType(i)
		}
	}
	return GeoTypeUnknown
}

// Geo dimension layout: bits 56-62 carry the GeoType code, bits 0-55 the
// magnitude. The sign bit is never set by EncodeGeoDimension.
const (
	geoTypeShift     = 56
	geoTypeMask      = 0x7f
	geoMagnitudeMask = int64(1)<<geoTypeShift - 1
)

// EncodeGeoDimension packs a classification and a magnitude. Negative
// magnitudes are stored as zero and magnitudes wider than 56 bits are
// truncated.
func EncodeGeoDimension(geoType GeoType, magnitude int64) int64 {
	if magnitude < 0 {
		magnitude = 0
	}
	code := int64(geoType)
	if geoType < 0 || int(geoType) >= len(geoTypeNames) {
		code = int64(GeoTypeUnknown)
	}
	return code<<geoTypeShift | magnitude&geoMagnitudeMask
}

// GeoTypeFromDimension decodes the classification of a geo dimension.
// Zero, negative and unmapped encodings decode to GeoTypeUnknown.
func GeoTypeFromDimension(dimension int64) GeoType {
	if dimension <= 0 {
		return GeoTypeUnknown
	}
	code := int((dimension >> geoTypeShift) & geoTypeMask)
	if code >= len(geoTypeNames) {
		return GeoTypeUnknown
	}
	return GeoType(code)
}

// GeoMagnitudeFromDimension decodes the magnitude of a geo dimension.
func GeoMagnitudeFromDimension(dimension int64) int64 {
	if dimension <= 0 {
		return 0
	}
	return dimension & geoMagnitudeMask
}

func (a *Article) GeoType() GeoType {
	return GeoTypeFromDimension(a.GeoDimension)
}

func (a *Article) GeoDimensionMagnitude() int64 {
	return GeoMagnitudeFromDimension(a.GeoDimension)
}
