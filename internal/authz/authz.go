package authz

import "cvr-league/config"

// Position role keys a requester may ask for on an ADD.
const (
	RoleViceCaptain  = "Vice Captain"
	RoleCourtCaptain = "Court Captain"
	RolePlayer       = "Player"
)

// Policy carries the admin list and the platform tag names the
// predicates check against. It is built once from config so the
// engine never touches a live role directory.
type Policy struct {
	Admins       []int64
	CaptainTag   string
	ViceTag      string
	CourtTag     string
	PlayerTag    string
	RefereeTag   string
	MediaTag     string
}

func NewPolicy(cfg *config.Config) Policy {
	return Policy{
		Admins:     cfg.Admins,
		CaptainTag: cfg.Tags.Captain,
		ViceTag:    cfg.Tags.ViceCaptain,
		CourtTag:   cfg.Tags.CourtCaptain,
		PlayerTag:  cfg.Tags.Player,
		RefereeTag: cfg.Tags.Referee,
		MediaTag:   cfg.Tags.Media,
	}
}

func (p Policy) IsAdmin(userID int64) bool {
	for _, id := range p.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

func hasTag(tags []string, want string) bool {
	if want == "" {
		return false
	}
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}

// CanOpenTransactions allows admins, captains and vice captains.
func (p Policy) CanOpenTransactions(userID int64, tags []string) bool {
	if p.IsAdmin(userID) {
		return true
	}
	return hasTag(tags, p.CaptainTag) || hasTag(tags, p.ViceTag)
}

// CanReviewTransactions reuses the same authority set as opening.
func (p Policy) CanReviewTransactions(userID int64, tags []string) bool {
	return p.CanOpenTransactions(userID, tags)
}

// CanPostResults allows admins, referees and media.
func (p Policy) CanPostResults(userID int64, tags []string) bool {
	if p.IsAdmin(userID) {
		return true
	}
	return hasTag(tags, p.RefereeTag) || hasTag(tags, p.MediaTag)
}

// PositionTags lists every position tag the league tracks; approval
// removes all of them before re-adding the right ones.
func (p Policy) PositionTags() []string {
	return []string{p.ViceTag, p.CourtTag, p.PlayerTag}
}

// RoleTagFor maps a requested position role key to its platform tag.
func (p Policy) RoleTagFor(roleKey string) string {
	switch roleKey {
	case RoleViceCaptain:
		return p.ViceTag
	case RoleCourtCaptain:
		return p.CourtTag
	default:
		return p.PlayerTag
	}
}
