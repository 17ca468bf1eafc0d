package quotes

import "math"

// Placeholder business constants. They are not derived from each other; the advance and
// pending split in particular does not follow Total.
const (
	DefaultProfessionalFee = 1000
	DefaultVendorFee       = 500
	DefaultGovtFee         = 200
	DefaultTotal           = 1700

	ContractorFee = 0
	GSTPercent    = 18
	Discount      = 0
	Rounding      = 0
	AdvanceAmount = 500
	PendingAmount = 1200
)

// NormalizeServices maps selected services to canonical line items, one per service and in
// the same order. A nil input yields an empty, non-nil slice.
func NormalizeServices(services []ServiceOffer) []CanonicalLineItem {
	items := make([]CanonicalLineItem, 0, len(services))
	for _, svc := range services {
		items = append(items, normalizeService(svc))
	}
	return items
}

func normalizeService(svc ServiceOffer) CanonicalLineItem {
	return CanonicalLineItem{
		ServiceID:       svc.ServiceID,
		ItemName:        svc.ServiceName,
		ProfessionalFee: resolveFee(DefaultProfessionalFee, svc.ProfessionalFee, svc.ProfessionalFeeYearly),
		VendorFee:       resolveFee(DefaultVendorFee, svc.VendorFee, svc.VendorFeeYearly),
		GovtFee:         resolveFee(DefaultGovtFee, svc.GovernmentFee, svc.GovernmentFeeYearly),
		ContractorFee:   ContractorFee,
		GSTPercent:      GSTPercent,
		Discount:        Discount,
		Rounding:        Rounding,
		Total:           resolveFee(DefaultTotal, svc.TotalFee, svc.TotalFeeYearly),
		AdvanceAmount:   AdvanceAmount,
		PendingAmount:   PendingAmount,
	}
}

// resolveFee returns the first candidate that parses to a finite, non-zero number, else
// the default. Zero counts as missing so no zero-priced line reaches the backend; values
// that overflow or underflow a float64 count as missing too.
func resolveFee(fallback int64, candidates ...Amount) float64 {
	for _, c := range candidates {
		d, ok := c.Decimal()
		if !ok {
			continue
		}
		f := d.InexactFloat64()
		if f == 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			continue
		}
		return f
	}
	return float64(fallback)
}
