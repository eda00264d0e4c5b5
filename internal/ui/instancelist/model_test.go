package instancelist

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/change-adapter/internal/model"
	appsync "github.com/nhle/change-adapter/internal/sync"
)

func TestSetStatusesAndSelection(t *testing.T) {
	m := New(map[string]string{"a": "Alpha"}, 120, 10)

	_, ok := m.Selected()
	assert.False(t, ok)

	m.SetStatuses([]appsync.InstanceStatus{
		{InstanceID: "a", LastStatus: model.StatusOnline, Records: 3, LastCheck: time.Now()},
		{InstanceID: "b", LastStatus: model.StatusOffline, LastError: errors.New("auth error")},
		{InstanceID: "c"},
	})

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 1, m.Online())

	id, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Contains(t, m.View(), "Alpha")
	assert.Contains(t, m.View(), "auth error")
}

func TestRowRendering(t *testing.T) {
	r := row(appsync.InstanceStatus{InstanceID: "x"}, "")
	assert.Equal(t, "?", r[2])
	assert.Equal(t, "never", r[4])

	r = row(appsync.InstanceStatus{InstanceID: "x", State: appsync.CheckRunning}, "")
	assert.Equal(t, "…", r[2])

	r = row(appsync.InstanceStatus{InstanceID: "x", LastStatus: model.StatusOffline, Records: 2}, "X")
	assert.Equal(t, "OFFLINE", r[2])
	assert.Equal(t, "2", r[3])
}

func TestCursorClampedWhenRowsShrink(t *testing.T) {
	m := New(nil, 120, 10)
	m.SetStatuses([]appsync.InstanceStatus{{InstanceID: "a"}, {InstanceID: "b"}})
	m.table.SetCursor(1)

	m.SetStatuses([]appsync.InstanceStatus{{InstanceID: "a"}})

	id, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "a", id)
}
