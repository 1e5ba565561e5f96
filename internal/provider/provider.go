// Package provider abstracts the external price sources consulted during
// offer composition. Production deployments plug in GDS or supplier
// integrations; the static implementations here supply the fixed development
// prices.
package provider

import "context"

// FareSource supplies a market base fare when no negotiated fare covers the
// requested route.
type FareSource interface {
	BaseFare(ctx context.Context, origin, destination, cabinClass string) (float64, error)
}

// AncillaryPriceSource supplies the catalog base price of an air ancillary.
type AncillaryPriceSource interface {
	BasePrice(ctx context.Context, ancillaryCode string) (float64, error)
}

// BundlePriceSource supplies the pre-discount base price of a bundle.
type BundlePriceSource interface {
	BasePrice(ctx context.Context, bundleCode string) (float64, error)
}

// Default development prices used by the static providers.
const (
	DefaultBaseFare       = 8500
	DefaultAncillaryPrice = 2000
	DefaultBundlePrice    = 3000
)

// StaticFareSource returns the same base fare for every route.
type StaticFareSource struct {
	Fare float64
}

func (s StaticFareSource) BaseFare(ctx context.Context, origin, destination, cabinClass string) (float64, error) {
	return s.Fare, nil
}

// StaticAncillaryPriceSource returns the same base price for every ancillary.
type StaticAncillaryPriceSource struct {
	Price float64
}

func (s StaticAncillaryPriceSource) BasePrice(ctx context.Context, ancillaryCode string) (float64, error) {
	return s.Price, nil
}

// StaticBundlePriceSource returns the same base price for every bundle.
type StaticBundlePriceSource struct {
	Price float64
}

func (s StaticBundlePriceSource) BasePrice(ctx context.Context, bundleCode string) (float64, error) {
	return s.Price, nil
}

// Defaults returns the static providers with the standard development prices.
func Defaults() (FareSource, AncillaryPriceSource, BundlePriceSource) {
	return StaticFareSource{Fare: DefaultBaseFare},
		StaticAncillaryPriceSource{Price: DefaultAncillaryPrice},
		StaticBundlePriceSource{Price: DefaultBundlePrice}
}
