// Package discovery implements LAN host discovery: the desktop broadcasts a
// marker datagram on a fixed UDP port and handhelds collect the announcements
// during a bounded scan window.
package discovery

import (
	"fmt"
	"strings"
)

// Marker is the first pipe-delimited field of every discovery datagram.
const Marker = "MOB_CONTROL_SERVER"

// DefaultPort is the reference discovery port.
const DefaultPort = 15000

// Record is one discovered host, keyed by endpoint.
type Record struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// Datagram builds the broadcast payload: MARKER|name|endpoint.
func Datagram(name, endpoint string) []byte {
	return []byte(Marker + "|" + name + "|" + endpoint)
}

// parseDatagram returns the record encoded in data, or an error for any
// payload that is not exactly three pipe-delimited fields with the marker.
func parseDatagram(data []byte) (Record, error) {
	parts := strings.Split(string(data), "|")
	if len(parts) != 3 || parts[0] != Marker {
		return Record{}, fmt.Errorf("not a discovery datagram")
	}
	return Record{Name: parts[1], Endpoint: parts[2]}, nil
}
