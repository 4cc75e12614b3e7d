package enrich

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mileusna/useragent"
)

// DeviceTraits are the stable attributes extracted from a User-Agent header
// that identify a device class. Stored next to the event so a fingerprint can
// be audited later.
type DeviceTraits struct {
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	OSVersion      string `json:"os_version"`
	DeviceClass    string `json:"device_class"`
	ClientType     string `json:"client_type"`
}

// Fingerprint parses a User-Agent string and hashes the extracted traits plus
// the client type into a stable device identifier. The traits are serialized
// with deterministic key order before hashing so equal devices always produce
// equal fingerprints.
func Fingerprint(userAgent, clientType string) (string, DeviceTraits) {
	ua := useragent.Parse(userAgent)

	traits := DeviceTraits{
		Browser:        ua.Name,
		BrowserVersion: ua.Version,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceClass:    deviceClass(ua),
		ClientType:     clientType,
	}

	// Struct fields marshal in declaration order, and json keys here are
	// already sorted alphabetically, so the serialization is canonical.
	data, _ := json.Marshal(traits)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), traits
}

func deviceClass(ua useragent.UserAgent) string {
	switch {
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Desktop:
		return "pc"
	case ua.Bot:
		return "bot"
	default:
		return "unknown"
	}
}

// Meta serializes traits for storage in the event's JSONB metadata column.
func (t DeviceTraits) Meta() []byte {
	data, _ := json.Marshal(t)
	return data
}
