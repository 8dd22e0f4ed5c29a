package cep

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) GetCEP(ctx context.Context, cep string) ([]byte, error) {
	return m.entries[cep], nil
}

func (m *memCache) SetCEP(ctx context.Context, cep string, payload []byte, ttl time.Duration) error {
	m.entries[cep] = payload
	return nil
}

func TestNormalize(t *testing.T) {
	cep, err := Normalize("01310-100")
	require.NoError(t, err)
	assert.Equal(t, "01310100", cep)

	_, err = Normalize("1310100")
	assert.ErrorIs(t, err, ErrInvalidCEP)

	_, err = Normalize("01310-10a")
	assert.ErrorIs(t, err, ErrInvalidCEP)
}

func TestLookup(t *testing.T) {
	var upstreamCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		assert.Equal(t, "/ws/01310100/json/", r.URL.Path)
		w.Write([]byte(`{"cep":"01310-100","logradouro":"Avenida Paulista","bairro":"Bela Vista","localidade":"São Paulo","uf":"SP"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, newMemCache(), time.Hour)

	addr, err := client.Lookup(context.Background(), "01310-100")
	require.NoError(t, err)
	assert.Equal(t, "Avenida Paulista", addr.Street)
	assert.Equal(t, "SP", addr.State)

	// Second lookup is served from cache.
	_, err = client.Lookup(context.Background(), "01310100")
	require.NoError(t, err)
	assert.Equal(t, 1, upstreamCalls)
}

func TestLookupUnknownCEP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"erro": true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, newMemCache(), time.Hour)

	_, err := client.Lookup(context.Background(), "99999999")
	assert.ErrorIs(t, err, ErrNotFound)
}
