package widget

import (
	"bytes"

	"verify-gateway/internal/sdk"
)

// Strategy is the integration surface the client will use. It is probed
// once per handle lifetime from the loaded bundle and never re-evaluated.
type Strategy string

const (
	// StrategyElement uses the SDK's custom widget element.
	StrategyElement Strategy = "element"

	// StrategyGlobal falls back to the SDK's global open() API when the
	// bundle does not register the widget element.
	StrategyGlobal Strategy = "global"
)

// Capability markers published by the SDK bundle. The element registration
// is preferred; the global object is the fallback.
var (
	elementMarker = []byte("idkit-widget")
	globalMarker  = []byte("window.IDKit")
)

// probeStrategy inspects the bundle for the capability markers. If neither
// surface is present the SDK is unusable in this environment, which is a
// recoverable, user-visible condition (e.g. a mangled bundle from an
// interfering proxy).
func probeStrategy(bundle *sdk.Bundle) (Strategy, error) {
	if bytes.Contains(bundle.Script, elementMarker) {
		return StrategyElement, nil
	}
	if bytes.Contains(bundle.Script, globalMarker) {
		return StrategyGlobal, nil
	}
	return "", ErrSDKUnavailable
}
