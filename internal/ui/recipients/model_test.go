package recipients

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/phoenix-warmup/internal/keys"
	"github.com/nhle/phoenix-warmup/internal/model"
)

type fakeBackend struct {
	pool        []model.Recipient
	deactivated []string
	deleted     []string
}

func (f *fakeBackend) Recipients(context.Context) ([]model.Recipient, error) {
	return f.pool, nil
}

func (f *fakeBackend) AddRecipient(_ context.Context, addr, name string) (bool, error) {
	for _, r := range f.pool {
		if r.Email == addr {
			return false, nil
		}
	}
	f.pool = append(f.pool, model.NewRecipient(addr, name))
	return true, nil
}

func (f *fakeBackend) DeactivateRecipient(_ context.Context, addr string) error {
	f.deactivated = append(f.deactivated, addr)
	return nil
}

func (f *fakeBackend) DeleteRecipient(_ context.Context, addr string) error {
	f.deleted = append(f.deleted, addr)
	return nil
}

func (f *fakeBackend) SeedRecipients(_ context.Context, n int) (int, error) {
	return n, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, b *fakeBackend) Model {
	t.Helper()
	m := New(b, keys.DefaultKeyMap(), 100, 30)
	m, _ = m.Update(m.Init()())
	return m
}

func TestLoadAndNavigate(t *testing.T) {
	b := &fakeBackend{pool: []model.Recipient{
		model.NewRecipient("a@example.org", "Ann"),
		model.NewRecipient("b@example.org", "Ben"),
	}}
	m := loaded(t, b)

	require.Len(t, m.recipients, 2)
	assert.Contains(t, m.View(), "2 active / 2 total")

	m, _ = m.Update(runes("j"))
	r, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, "b@example.org", r.Email)

	// wraps around
	m, _ = m.Update(runes("j"))
	r, _ = m.selected()
	assert.Equal(t, "a@example.org", r.Email)
}

func TestDeactivateSelected(t *testing.T) {
	b := &fakeBackend{pool: []model.Recipient{model.NewRecipient("a@example.org", "")}}
	m := loaded(t, b)

	_, cmd := m.Update(runes("x"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []string{"a@example.org"}, b.deactivated)

	m, _ = m.Update(msg)
	assert.Equal(t, "Deactivated a@example.org", m.statusMsg)
}

func TestInactiveRecipientIsNotDeactivatedAgain(t *testing.T) {
	r := model.NewRecipient("a@example.org", "")
	r.Active = false
	m := loaded(t, &fakeBackend{pool: []model.Recipient{r}})

	_, cmd := m.Update(runes("x"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "inactive")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	b := &fakeBackend{pool: []model.Recipient{model.NewRecipient("a@example.org", "")}}
	m := loaded(t, b)

	m, _ = m.Update(runes("d"))
	assert.Equal(t, modeConfirmDelete, m.mode)
	assert.Empty(t, b.deleted)

	m.fb.confirm = true
	_, cmd := m.submit()
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"a@example.org"}, b.deleted)
}

func TestAddDuplicateReportsStatus(t *testing.T) {
	b := &fakeBackend{pool: []model.Recipient{model.NewRecipient("a@example.org", "")}}
	m := loaded(t, b)

	m, _ = m.Update(runes("n"))
	require.Equal(t, modeAdd, m.mode)
	m.fb.email = "a@example.org"

	_, cmd := m.submit()
	done := cmd().(doneMsg)
	assert.NoError(t, done.err)
	assert.Equal(t, "a@example.org is already in the pool", done.status)
}

func TestEscCloses(t *testing.T) {
	m := loaded(t, &fakeBackend{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}
