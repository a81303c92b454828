// Package render turns a transaction request into a display payload
// for the front-end: title, body, labeled fields and the interactive
// affordances valid in the current state. It never emits raw ids.
package render

import (
	"fmt"

	"cvr-league/internal/models"
)

const (
	AffordanceAccept  = "accept"
	AffordanceDeny    = "deny"
	AffordanceProfile = "profile"
)

type Affordance struct {
	Kind  string
	Label string
}

// Directive is everything the front-end needs to draw one request.
// ProfileURL and AvatarURL are optional decoration; when empty the
// front-end degrades to no link, never an error.
type Directive struct {
	Title       string
	Body        string
	Status      models.TxStatus
	Stage       models.TxStage
	RequestedBy string
	ActorLabel  string
	ActorName   string
	Reason      string
	Affordances []Affordance
	ProfileURL  string
	AvatarURL   string
}

// Names carries the display names the directive body is built from.
// ToTeam must already be "Free Agent" for a REMOVE.
type Names struct {
	Requester string
	Target    string
	FromTeam  string
	ToTeam    string
	Actor     string
}

// ForRequest builds the directive for a request in its current state.
func ForRequest(req *models.TransactionRequest, n Names) *Directive {
	d := &Directive{
		Status:      req.Status,
		Stage:       req.Stage(),
		RequestedBy: n.Requester,
		Reason:      "—",
	}

	switch req.Action {
	case models.ActionAdd:
		d.Body = fmt.Sprintf("%s → %s as %s", n.Target, n.ToTeam, req.RequestedRole)
	case models.ActionRemove:
		d.Body = fmt.Sprintf("%s → Free Agent", n.Target)
	default:
		d.Body = fmt.Sprintf("%s → %s", n.Target, n.ToTeam)
	}

	switch req.Status {
	case models.StatusPending:
		d.Title = "Pending Transaction"
		d.ActorLabel = "Status"
		acceptLabel := "Accept"
		if req.Action == models.ActionTransfer {
			d.Title = "Pending Transfer"
			if req.PlayerConfirmed {
				d.Body += "\n\nAccepted by player - waiting for the Transaction Team (1/2)"
				acceptLabel = "Accept (1/2)"
			} else {
				d.Body += "\n\nWaiting for player acceptance (0/2)"
			}
		}
		d.Affordances = []Affordance{
			{Kind: AffordanceAccept, Label: acceptLabel},
			{Kind: AffordanceDeny, Label: "Deny"},
		}
	case models.StatusApproved:
		d.Title = "Successful Transfer"
		d.ActorLabel = "Approved by"
		d.ActorName = n.Actor
	case models.StatusRejected:
		d.Title = "Unsuccessful Transfer"
		d.ActorLabel = "Denied by"
		d.ActorName = n.Actor
		if req.Reason != "" {
			d.Reason = req.Reason
		}
	}

	return d
}
