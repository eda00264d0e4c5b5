package ticketlist

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/tests/testutil"
)

func TestFieldRendering(t *testing.T) {
	assert.Equal(t, "", field(nil))
	assert.Equal(t, "CHG1", field("CHG1"))
	assert.Equal(t, "3", field(json.Number("3")))
	assert.Equal(t, "true", field(true))
}

func TestIsActive(t *testing.T) {
	assert.True(t, isActive("true"))
	assert.False(t, isActive("false"))
	assert.False(t, isActive(false))
	assert.True(t, isActive(nil))
}

func TestWindow(t *testing.T) {
	assert.Equal(t, "-", window(nil, ""))
	assert.Equal(t, "a → b", window("a", "b"))
}

func TestLoadTicketsForInstance(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTickets(ctx, "snow-1", []model.ChangeTicket{
		{Number: "CHG1", Description: "patch db", Key: "k1", Priority: "2"},
		{Number: "CHG2", Description: "rotate certs", Key: "k2"},
	}, time.Now()))

	m := New(s, 100, 20)
	assert.Nil(t, m.LoadTickets())

	cmd := m.SetInstance("snow-1")
	require.NotNil(t, cmd)
	assert.Nil(t, m.SetInstance("snow-1"))

	msg := cmd().(TicketsLoadedMsg)
	require.NoError(t, msg.Err)
	assert.Len(t, msg.Tickets, 2)

	m, _ = m.Update(msg)
	assert.Len(t, m.list.Items(), 2)
	assert.Contains(t, m.View(), "CHG1")
}

func TestStaleLoadIgnored(t *testing.T) {
	m := New(testutil.NewTestStore(t), 100, 20)
	m.SetInstance("snow-2")

	m, _ = m.Update(TicketsLoadedMsg{
		InstanceID: "snow-1",
		Tickets:    []model.StoredTicket{{InstanceID: "snow-1"}},
	})
	assert.Empty(t, m.list.Items())
	assert.Contains(t, m.View(), "No tickets stored yet.")
}

func TestSearchMode(t *testing.T) {
	m := New(testutil.NewTestStore(t), 100, 20)
	m.SetInstance("snow-1")

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	assert.True(t, m.Searching())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Searching())
	assert.NotNil(t, cmd)
}
