// Package buildinfo carries version metadata stamped by the linker:
//
//	go build -ldflags "-X github.com/m3rciful/couponbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/couponbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/couponbot/core/buildinfo.Date=$(date -u +%FT%TZ)" ./cmd/couponbot
package buildinfo

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// String renders a compact version line for logs and /healthz.
func String() string {
	if Date == "" {
		return Version + "+" + Commit
	}
	return Version + "+" + Commit + " (" + Date + ")"
}
