package auth

type Action int

const (
	// ActionPlaceholder keeps showing the loading skeleton.
	ActionPlaceholder Action = iota
	// ActionRedirect sends the visitor to the login route.
	ActionRedirect
	// ActionRender shows the wrapped content.
	ActionRender
)

func (a Action) String() string {
	switch a {
	case ActionRedirect:
		return "redirect"
	case ActionRender:
		return "render"
	default:
		return "placeholder"
	}
}

// Gate decides what a gated view shows for each observed session state.
// Redirect is returned once per transition into "no session", not on every
// observation.
type Gate struct {
	redirected bool
}

func (g *Gate) Observe(state SessionState) Action {
	switch {
	case state.Loading:
		return ActionPlaceholder
	case state.User == nil:
		if g.redirected {
			return ActionPlaceholder
		}
		g.redirected = true
		return ActionRedirect
	default:
		g.redirected = false
		return ActionRender
	}
}
