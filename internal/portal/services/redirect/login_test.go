package redirect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/haukened/portalgate/internal/portal/common/uri"
	"github.com/haukened/portalgate/internal/portal/domain"
)

// memorySessions is an in-memory SessionStore following the same state
// transitions as the bbolt store.
type memorySessions struct {
	flags map[string]domain.FlagState
}

func newMemorySessions() *memorySessions {
	return &memorySessions{flags: make(map[string]domain.FlagState)}
}

func (m *memorySessions) ArmLoginRedirect(id string) error {
	m.flags[id] = domain.FlagSet
	return nil
}

func (m *memorySessions) ConsumeLoginRedirect(id string) (domain.FlagState, error) {
	prev := m.flags[id]
	if prev == domain.FlagSet {
		m.flags[id] = domain.FlagConsumed
	}
	return prev, nil
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) ArmLoginRedirect(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockSessions) ConsumeLoginRedirect(id string) (domain.FlagState, error) {
	args := m.Called(id)
	return args.Get(0).(domain.FlagState), args.Error(1)
}

func newFlow(s SessionStore) (*LoginFlow, *recordedActivity) {
	act := &recordedActivity{}
	return NewLoginFlow(LoginFlowOptions{Sessions: s, Target: target, Marker: "omni_sales", Activity: act}), act
}

func TestLoginFlow_FlagFiresOnce(t *testing.T) {
	sessions := newMemorySessions()
	flow, act := newFlow(sessions)

	dec := flow.OnLoginSuccess("s1")
	assert.Equal(t, domain.RedirectTo(target, domain.ReasonLogin), dec)
	assert.Equal(t, domain.FlagSet, sessions.flags["s1"])

	dec = flow.ConsumeLoginRedirect("s1", uri.ParseRoute("clients/invoices", nil))
	assert.Equal(t, domain.RedirectTo(target, domain.ReasonLoginFlag), dec)
	assert.Equal(t, domain.FlagConsumed, sessions.flags["s1"])

	dec = flow.ConsumeLoginRedirect("s1", uri.ParseRoute("clients/invoices", nil))
	assert.False(t, dec.ShouldRedirect, "consumed flag must not redirect again")

	assert.Equal(t, []string{
		"Redirecting client after login to Omni Sales",
		"Force redirecting to Omni Sales after login",
	}, act.messages)
}

func TestLoginFlow_NoRedirectWhenAlreadyOnStorefront(t *testing.T) {
	sessions := newMemorySessions()
	flow, _ := newFlow(sessions)
	flow.OnLoginSuccess("s1")

	dec := flow.ConsumeLoginRedirect("s1", uri.ParseRoute("omni_sales/omni_sales_client/index/1/4/0", nil))
	assert.False(t, dec.ShouldRedirect)
	assert.Equal(t, domain.FlagConsumed, sessions.flags["s1"], "flag is cleared even without redirect")
}

func TestLoginFlow_UnsetFlag(t *testing.T) {
	flow, _ := newFlow(newMemorySessions())
	assert.False(t, flow.ConsumeLoginRedirect("s1", uri.ParseRoute("clients", nil)).ShouldRedirect)
	assert.False(t, flow.ConsumeLoginRedirect("", uri.ParseRoute("clients", nil)).ShouldRedirect)
}

func TestLoginFlow_StoreErrors(t *testing.T) {
	sessions := &MockSessions{}
	sessions.On("ArmLoginRedirect", "s1").Return(errors.New("locked"))
	sessions.On("ConsumeLoginRedirect", "s1").Return(domain.FlagUnset, errors.New("locked"))
	flow, _ := newFlow(sessions)

	assert.True(t, flow.OnLoginSuccess("s1").ShouldRedirect, "login response still redirects")
	assert.False(t, flow.ConsumeLoginRedirect("s1", uri.ParseRoute("clients", nil)).ShouldRedirect)
	sessions.AssertExpectations(t)
}

func TestLoginFlow_ApplyClientAreaOnly(t *testing.T) {
	sessions := &MockSessions{}
	flow, _ := newFlow(sessions)

	admin := &domain.PortalRequest{Area: domain.AreaAdmin, SessionID: "s1", Route: uri.ParseRoute("/admin", nil)}
	assert.False(t, flow.Apply(context.Background(), admin).ShouldRedirect)
	asset := &domain.PortalRequest{Area: domain.AreaStatic, SessionID: "s1", Route: uri.ParseRoute("/assets/app.js", nil)}
	assert.False(t, flow.Apply(context.Background(), asset).ShouldRedirect)
	sessions.AssertNotCalled(t, "ConsumeLoginRedirect", mock.Anything)

	sessions.On("ConsumeLoginRedirect", "s1").Return(domain.FlagSet, nil).Once()
	client := &domain.PortalRequest{Area: domain.AreaClient, SessionID: "s1", Route: uri.ParseRoute("/clients/tickets", nil)}
	assert.True(t, flow.Apply(context.Background(), client).ShouldRedirect)
	sessions.AssertExpectations(t)
}
