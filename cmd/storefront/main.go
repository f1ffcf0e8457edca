// Command storefront runs the storefront account API.
package main

//go:generate swag init --parseDependency -g router.go -d ../../internal/storefront/http,../../internal/storefront/service,../../internal/storefront/domain,../../pkg/httpx -o ../../api/storefront --outputTypes go

import (
	"os"

	"github.com/aussiebroadwan/storefront/internal/storefront/app"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app.BuildVersion = version

	cmd := NewRootCmd()
	cmd.Version = version + " (commit: " + commit + ")"

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
