package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionManager_SelectBumpsUploadNonce(t *testing.T) {
	m := NewSessionManager(time.Hour)
	s := m.Start()
	require.NotEmpty(t, s.ID)
	require.Equal(t, 0, s.UploadNonce)

	s, ok := m.Select(s.ID, "CX-5", "ABC-123")
	require.True(t, ok)
	require.Equal(t, 1, s.UploadNonce)

	// 同品番重選不重置上傳表單
	s, ok = m.Select(s.ID, "CX-5", "ABC-123")
	require.True(t, ok)
	require.Equal(t, 1, s.UploadNonce)

	s, ok = m.Select(s.ID, "CX-5", "ABC-124")
	require.True(t, ok)
	require.Equal(t, 2, s.UploadNonce)
}

func TestSessionManager_IdleExpiry(t *testing.T) {
	m := NewSessionManager(time.Minute)
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	s := m.Start()
	_, ok := m.Get(s.ID)
	require.True(t, ok)

	m.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok = m.Get(s.ID)
	require.False(t, ok)
}

func TestSessionManager_End(t *testing.T) {
	m := NewSessionManager(time.Hour)
	s := m.Start()
	m.End(s.ID)
	_, ok := m.Get(s.ID)
	require.False(t, ok)
}
