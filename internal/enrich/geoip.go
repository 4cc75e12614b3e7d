// Package enrich derives network location and device identity attributes for
// raw access events before they reach the risk engine.
package enrich

import "strings"

// GeoInfo is the resolved network location of a source IP.
type GeoInfo struct {
	Country string `json:"country"`
	ASN     string `json:"asn"`
}

// LookupGeo resolves a source IP to a country and ASN using a static prefix
// table. This stands in for a real GeoIP database; swap the implementation,
// keep the contract. Unknown addresses map to UNKNOWN/AS_UNKNOWN rather than
// an error so ingestion never blocks on enrichment.
func LookupGeo(ip string) GeoInfo {
	switch {
	case strings.HasPrefix(ip, "192.168"):
		return GeoInfo{Country: "IN", ASN: "AS_LOCAL"}
	case strings.HasPrefix(ip, "10."):
		return GeoInfo{Country: "IN", ASN: "AS_PRIVATE"}
	case strings.HasPrefix(ip, "8.8"):
		return GeoInfo{Country: "US", ASN: "AS_GOOGLE"}
	default:
		return GeoInfo{Country: "UNKNOWN", ASN: "AS_UNKNOWN"}
	}
}
