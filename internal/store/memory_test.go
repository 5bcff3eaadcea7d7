package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-immers-client/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Handle()
	assert.False(t, ok)
	_, ok = s.Credential()
	assert.False(t, ok)

	require.NoError(t, s.SetHandle("tester[home.immer]"))
	require.NoError(t, s.SetCredential(models.Credential{Token: "tok123"}))

	handle, ok := s.Handle()
	require.True(t, ok)
	assert.Equal(t, "tester[home.immer]", handle)

	cred, ok := s.Credential()
	require.True(t, ok)
	assert.Equal(t, "tok123", cred.Token)

	require.NoError(t, s.Clear())
	_, ok = s.Handle()
	assert.False(t, ok)
	_, ok = s.Credential()
	assert.False(t, ok)
}
