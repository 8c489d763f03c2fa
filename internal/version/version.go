// ABOUTME: Build and product identification
// ABOUTME: Version is overridden at link time with -ldflags
package version

import "fmt"

// Set with -ldflags "-X github.com/Vigour-Plus-Plus/vigour-go/internal/version.Version=1.2.3"
var Version = "0.3.0-dev"

const (
	Product      = "Vigour"
	Manufacturer = "Vigour-Plus-Plus"
)

// String returns the product and version for display
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
