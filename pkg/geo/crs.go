package geo

import "strings"

// DefaultCRS is the RFC 7946 GeoJSON reference system.
const DefaultCRS = "EPSG:4326"

// NormalizeCRS maps the common spellings of a reference system name to the
// short "EPSG:<code>" form. Unknown names are returned upper-cased and trimmed.
//
//	"urn:ogc:def:crs:EPSG::32637" -> "EPSG:32637"
//	"urn:ogc:def:crs:OGC:1.3:CRS84" -> "EPSG:4326"
func NormalizeCRS(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	if s == "" {
		return DefaultCRS
	}
	if strings.HasSuffix(s, "CRS84") {
		return DefaultCRS
	}
	if i := strings.Index(s, "EPSG"); i >= 0 {
		code := s[i+len("EPSG"):]
		if j := strings.LastIndex(code, ":"); j >= 0 {
			code = code[j+1:]
		}
		if code != "" {
			return "EPSG:" + code
		}
	}
	return s
}

// IsGeographic reports whether crs is longitude/latitude WGS84.
func IsGeographic(crs string) bool {
	return NormalizeCRS(crs) == DefaultCRS
}
