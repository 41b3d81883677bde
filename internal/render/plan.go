package render

import "strings"

// Profile is the caller-facing quality knob. Clients never name provider
// models directly; the profile plus plan tier resolve to one.
type Profile string

const (
	ProfileAuto     Profile = "auto"
	ProfileEconomy  Profile = "economy"
	ProfileBalanced Profile = "balanced"
	ProfilePremium  Profile = "premium"
)

// Plan is the resolved {profile, model, quality} tuple for one job. It is
// ephemeral: computed per request, annotated onto the result, never stored.
type Plan struct {
	Profile Profile
	Model   string
	Quality string
}

// Resolver turns a requested profile, the user's plan tier and the requested
// difficulty into a concrete render plan. Free-tier usage resolves to the
// economy model so its provider cost stays bounded by construction.
type Resolver struct {
	premiumModel string
	economyModel string
}

func NewResolver(premiumModel, economyModel string) *Resolver {
	return &Resolver{premiumModel: premiumModel, economyModel: economyModel}
}

func (r *Resolver) Resolve(profile Profile, planCode, difficulty string) Plan {
	resolved := profile
	if resolved == "" || resolved == ProfileAuto {
		resolved = r.autoProfile(planCode, difficulty)
	}

	switch resolved {
	case ProfilePremium:
		return Plan{Profile: ProfilePremium, Model: r.premiumModel, Quality: "high"}
	case ProfileBalanced:
		return Plan{Profile: ProfileBalanced, Model: r.premiumModel, Quality: "medium"}
	default:
		return Plan{Profile: ProfileEconomy, Model: r.economyModel, Quality: "low"}
	}
}

func (r *Resolver) autoProfile(planCode, difficulty string) Profile {
	paidTier := planCode != "" && planCode != "free"
	detailed := strings.EqualFold(strings.TrimSpace(difficulty), "detailed")

	switch {
	case paidTier && detailed:
		return ProfilePremium
	case paidTier:
		return ProfileBalanced
	default:
		return ProfileEconomy
	}
}

// ParseProfile normalizes a client-supplied profile string; anything
// unrecognized resolves as auto.
func ParseProfile(raw string) Profile {
	switch Profile(strings.ToLower(strings.TrimSpace(raw))) {
	case ProfileEconomy:
		return ProfileEconomy
	case ProfileBalanced:
		return ProfileBalanced
	case ProfilePremium:
		return ProfilePremium
	default:
		return ProfileAuto
	}
}
