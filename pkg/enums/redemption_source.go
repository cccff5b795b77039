package enums

// RedemptionSource distinguishes staff scans from automatic gift issuance.
type RedemptionSource string

const (
	RedemptionSourceStaff  RedemptionSource = "staff"
	RedemptionSourceSystem RedemptionSource = "system"
)

var redemptionSources = set[RedemptionSource]{RedemptionSourceStaff, RedemptionSourceSystem}

func (s RedemptionSource) IsValid() bool {
	return redemptionSources.has(s)
}

func ParseRedemptionSource(value string) (RedemptionSource, error) {
	return redemptionSources.parse("redemption source", value)
}
