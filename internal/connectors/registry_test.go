package connectors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }
func (nopRunner) LookPath(string) error                                  { return errors.New("missing") }

func names(r *Registry) []string {
	var out []string
	for _, a := range r.List() {
		out = append(out, a.Name())
	}
	return out
}

func TestDefaults(t *testing.T) {
	cfg := domain.DefaultAppConfig()
	r := Defaults(&cfg, nopRunner{})

	assert.Equal(t, []string{
		"doj", "direct_urls", "internet_archive", "documentcloud", "house_oversight",
		"torrents", "epsteingraph", "courtlistener", "fbi_vault",
	}, names(r))

	cl, err := r.Get("courtlistener")
	require.NoError(t, err)
	assert.ErrorIs(t, cl.Available(context.Background()), domain.ErrSourceDisabled)

	tor, err := r.Get("torrents")
	require.NoError(t, err)
	assert.ErrorIs(t, tor.Available(context.Background()), domain.ErrSourceDisabled)
}

func TestDefaults_CourtListenerToken(t *testing.T) {
	cfg := domain.DefaultAppConfig()
	cfg.Sources["courtlistener"] = domain.SourceConfig{Enabled: true, APIToken: "tok"}

	cl, err := Defaults(&cfg, nopRunner{}).Get("courtlistener")
	require.NoError(t, err)
	assert.NoError(t, cl.Available(context.Background()))
}

func TestRegistry_Get(t *testing.T) {
	cfg := domain.DefaultAppConfig()
	r := Defaults(&cfg, nopRunner{})

	_, err := r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrUnknownSource)

	list := r.List()
	list[0] = nil
	assert.Equal(t, "doj", r.List()[0].Name(), "List returns a copy")
}

func TestRegistry_Replace(t *testing.T) {
	cfg := domain.DefaultAppConfig()
	r := Defaults(&cfg, nopRunner{})
	before := len(r.List())

	r.Register(r.List()[0])
	assert.Len(t, r.List(), before)
	assert.Equal(t, "doj", names(r)[0])
}
