// Package device classifies the execution environment of a request: the
// Serenity dedicated client, or a generic browser. The classification is a
// pure snapshot of the User-Agent string and capability flags, evaluated
// once per request, and gates whether the widget auto-opens or a banner is
// shown instead.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Environment is the detected execution context.
type Environment string

const (
	EnvDedicatedClient Environment = "dedicated_client"
	EnvGenericBrowser  Environment = "generic_browser"
)

// Flags are explicit capability signals sent by the client alongside the
// User-Agent, mirroring the globals the dedicated client injects.
type Flags struct {
	DedicatedClient bool `json:"dedicated_client"`
}

// Detector classifies requests using a configurable dedicated-client marker.
type Detector struct {
	marker string
}

// NewDetector builds a Detector. The marker is the User-Agent token that
// identifies the dedicated client (e.g. "SerenityApp").
func NewDetector(marker string) *Detector {
	return &Detector{marker: marker}
}

// Detect classifies a request. Either the marker in the User-Agent or the
// explicit capability flag is sufficient for the dedicated-client path.
func (d *Detector) Detect(uaString string, flags Flags) Environment {
	if flags.DedicatedClient {
		return EnvDedicatedClient
	}
	if d.marker != "" && strings.Contains(uaString, d.marker) {
		return EnvDedicatedClient
	}
	return EnvGenericBrowser
}

// Describe renders a human-readable device name ("Chrome on Mac OS X ...")
// for session records and audit events.
func Describe(uaString string) string {
	if strings.TrimSpace(uaString) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.Join(strings.Fields(name+" on "+os), " ")
}

// Service computes stable device fingerprints for session records.
type Service struct {
	enabled bool
}

// NewService builds a fingerprinting service. When disabled it returns
// empty fingerprints so callers can keep a single code path.
func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes browser name, major version, and OS. Minor
// version bumps keep the fingerprint stable; major bumps change it.
func (s *Service) ComputeFingerprint(uaString string) string {
	if !s.enabled {
		return ""
	}

	ua := useragent.New(uaString)
	name, version := ua.Browser()
	major := version
	if idx := strings.Index(version, "."); idx != -1 {
		major = version[:idx]
	}

	sum := sha256.Sum256([]byte(name + "/" + major + "/" + ua.OS()))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether two fingerprints match and whether
// drift occurred.
func (s *Service) CompareFingerprints(stored, current string) (matched, drift bool) {
	matched = stored == current
	return matched, !matched
}
