// Package identity answers "who is acting" for room commands and sessions.
package identity

import (
	"context"

	"github.com/mcoot/turnclock/internal/model"
)

// Provider supplies the current caller
type Provider interface {
	// CurrentUser returns the caller, or false if there is none
	CurrentUser() (model.PlayerRef, bool)
	IsAuthenticated() bool
}

// Static is a fixed identity, such as the player a CLI token belongs to
type Static struct {
	Player model.PlayerRef
}

// Ensure implementations satisfy Provider
var (
	_ Provider = Static{}
	_ Provider = Anonymous{}
)

// NewStatic returns a Provider for the player
func NewStatic(player model.PlayerRef) Static {
	return Static{Player: player}
}

func (s Static) CurrentUser() (model.PlayerRef, bool) {
	return s.Player, !s.Player.IsZero()
}

func (s Static) IsAuthenticated() bool {
	return !s.Player.IsZero()
}

// Anonymous has no identity
type Anonymous struct{}

func (Anonymous) CurrentUser() (model.PlayerRef, bool) { return model.PlayerRef{}, false }

func (Anonymous) IsAuthenticated() bool { return false }

type contextKey struct{}

// WithPlayer attaches a player identity to the context
func WithPlayer(ctx context.Context, player *model.Player) context.Context {
	return context.WithValue(ctx, contextKey{}, player)
}

// PlayerFromContext returns the player attached by WithPlayer, or nil
func PlayerFromContext(ctx context.Context) *model.Player {
	player, _ := ctx.Value(contextKey{}).(*model.Player)
	return player
}

// FromContext returns a Provider for the player attached to the context
func FromContext(ctx context.Context) Provider {
	if player := PlayerFromContext(ctx); player != nil {
		return NewStatic(player.Ref())
	}
	return Anonymous{}
}

// Require returns the caller or model.ErrIdentityRequired
func Require(p Provider) (model.PlayerRef, error) {
	if p == nil {
		return model.PlayerRef{}, model.ErrIdentityRequired
	}
	ref, ok := p.CurrentUser()
	if !ok || !p.IsAuthenticated() {
		return model.PlayerRef{}, model.ErrIdentityRequired
	}
	return ref, nil
}
