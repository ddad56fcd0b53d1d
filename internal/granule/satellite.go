package granule

import (
	"sort"
	"strings"
)

// satelliteCodes maps platform names to the two-letter code used in
// NSS.* granule names.
var satelliteCodes = map[string]string{
	"tiros-n": "TN",
	"noaa-06": "NA",
	"noaa-07": "NC",
	"noaa-08": "NE",
	"noaa-09": "NF",
	"noaa-10": "NG",
	"noaa-11": "NH",
	"noaa-12": "ND",
	"noaa-14": "NJ",
	"noaa-15": "NK",
	"noaa-16": "NL",
	"noaa-17": "NM",
	"noaa-18": "NN",
	"noaa-19": "NP",
	"metop-a": "M2",
	"metop-b": "M1",
	"metop-c": "M3",
}

var codeSatellites = func() map[string]string {
	m := make(map[string]string, len(satelliteCodes))
	for sat, code := range satelliteCodes {
		m[code] = sat
	}
	return m
}()

// CodeForSatellite returns the granule-name code for a platform name such as
// "metop-b".
func CodeForSatellite(satellite string) (string, bool) {
	code, ok := satelliteCodes[strings.ToLower(strings.TrimSpace(satellite))]
	return code, ok
}

// SatelliteForCode is the inverse of CodeForSatellite.
func SatelliteForCode(code string) (string, bool) {
	sat, ok := codeSatellites[strings.ToUpper(code)]
	return sat, ok
}

// Satellites returns the known platform names in sorted order.
func Satellites() []string {
	out := make([]string, 0, len(satelliteCodes))
	for sat := range satelliteCodes {
		out = append(out, sat)
	}
	sort.Strings(out)
	return out
}
