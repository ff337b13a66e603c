package locale_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhart/localwire/pkg/locale"
)

func TestResolveZip(t *testing.T) {
	r := locale.NewResolver(nil)

	p, err := r.Resolve("02720")
	require.NoError(t, err)
	assert.Equal(t, "Fall River", p.City)
	assert.Equal(t, "MA", p.State)

	p, err = r.Resolve("02878")
	require.NoError(t, err)
	assert.Equal(t, "Tiverton", p.City)
	assert.Equal(t, "RI", p.State)
}

func TestResolveCityCaseInsensitive(t *testing.T) {
	r := locale.NewResolver(nil)

	p, err := r.Resolve("new bedford")
	require.NoError(t, err)
	assert.Equal(t, "New Bedford", p.City)

	p, err = r.Resolve("  Somerset ")
	require.NoError(t, err)
	assert.Equal(t, "02726", p.Zip)
}

func TestResolveUnknown(t *testing.T) {
	r := locale.NewResolver(nil)

	_, err := r.Resolve("99999")
	assert.Error(t, err)
	_, err = r.Resolve("")
	assert.Error(t, err)
}

func TestResolveConfiguredExtrasWin(t *testing.T) {
	r := locale.NewResolver([]locale.Place{
		{City: "Fall River", State: "MA", Zip: "02722"},
		{City: "Portsmouth", State: "RI", Zip: "02871"},
	})

	p, err := r.Resolve("02722")
	require.NoError(t, err)
	assert.Equal(t, "Fall River", p.City)

	p, err = r.Resolve("portsmouth")
	require.NoError(t, err)
	assert.Equal(t, "RI", p.State)

	// Extras override the built-in city entry.
	p, err = r.Resolve("fall river")
	require.NoError(t, err)
	assert.Equal(t, "02722", p.Zip)
}
