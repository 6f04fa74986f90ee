package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anicoll/counter-dashboard/internal/pkg/model"
)

func TestGate_Observe(t *testing.T) {
	user := &model.User{ID: "usr_1"}
	g := &Gate{}

	assert.Equal(t, ActionPlaceholder, g.Observe(SessionState{Loading: true}))
	assert.Equal(t, ActionRedirect, g.Observe(SessionState{}))
	// no repeated navigation while the state has not changed
	assert.Equal(t, ActionPlaceholder, g.Observe(SessionState{}))
	assert.Equal(t, ActionPlaceholder, g.Observe(SessionState{}))

	assert.Equal(t, ActionRender, g.Observe(SessionState{User: user}))
	assert.Equal(t, ActionRender, g.Observe(SessionState{User: user}))

	// signing out again is a new transition
	assert.Equal(t, ActionRedirect, g.Observe(SessionState{}))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "placeholder", ActionPlaceholder.String())
	assert.Equal(t, "redirect", ActionRedirect.String())
	assert.Equal(t, "render", ActionRender.String())
}
