package engine

// HouseRules holds configurable rule settings.
type HouseRules struct {
	RandomRiftAttempts uint16 // draws allowed when generating a random rift layout
	HolidaySliderJump  bool   // Holiday's Rejuvenation lets sliders hop one friendly piece
	ForceWhiteFirst    bool   // false lets the seed pick the opening side
}

// DefaultHouseRules returns the standard Rifts of Chaos rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		RandomRiftAttempts: 100,
		HolidaySliderJump:  true,
		ForceWhiteFirst:    true,
	}
}

// riftAttempts returns the effective retry bound, treating 0 as the default.
func (r *HouseRules) riftAttempts() int {
	if r.RandomRiftAttempts == 0 {
		return 100
	}
	return int(r.RandomRiftAttempts)
}
