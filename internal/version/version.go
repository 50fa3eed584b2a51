// In file: internal/version/version.go

// Package version centralizes build metadata and the component versions that
// feed client-visible fingerprints.
//
// The tool listing is fingerprinted from the catalogue contents plus
// ComponentVersions.Tools, so bumping that string invalidates every ETag a
// frontend has cached even when names and sources are unchanged (for example
// after a fix to a built-in tool's behavior).
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/dileep-u-k/tool-gateway/internal/tools"
)

// Set at build time with -ldflags "-X github.com/dileep-u-k/tool-gateway/internal/version.Version=...".
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// ComponentVersions holds the version strings for logical parts of the gateway.
// Manually increment a version here before deploying a change to that component.
var ComponentVersions = struct {
	// Tools should be updated whenever a built-in tool's logic or schema changes.
	Tools string
	// Protocol should be updated whenever the normalized message shape changes.
	Protocol string
}{
	Tools:    "v1.0",
	Protocol: "v1.0",
}

type BuildInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// CatalogETag fingerprints a tool listing. Order matters: the same tools listed
// in a different order produce a different tag.
//
// Example output: "\"tv1.0_pv1.0-a1b2c3d4e5f6a7b8\""
func CatalogETag(descs []tools.ToolDescriptor) string {
	hasher := sha256.New()
	for _, d := range descs {
		schema, _ := json.Marshal(d.Parameters)
		fmt.Fprintf(hasher, "%s\x00%s\x00%s\x00%s\n", d.Name, d.Source, d.Description, schema)
	}
	sum := hex.EncodeToString(hasher.Sum(nil))[:16]
	return fmt.Sprintf("%q", fmt.Sprintf("tv%s_pv%s-%s", ComponentVersions.Tools, ComponentVersions.Protocol, sum))
}
