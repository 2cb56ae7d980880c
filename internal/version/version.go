// ABOUTME: Version information for the player and feed binaries
// ABOUTME: Product identity reported by -version and advertised over mDNS
package version

import "fmt"

const (
	Version      = "0.3.0"
	Product      = "Gapless Player"
	Manufacturer = "Resonate Protocol"
)

// String returns the one-line version banner
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
