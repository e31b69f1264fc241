package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func TestJitoSendBundle(t *testing.T) {
	var got jsonRPCRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, bundlesPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"bundle-123"}`))
	}))
	defer srv.Close()

	j, err := NewJitoClient(srv.URL+"/", []string{solana.SystemProgramID.String()})
	require.NoError(t, err)

	id, err := j.SendBundle(context.Background(), [][]byte{{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "bundle-123", id)

	assert.Equal(t, "sendBundle", got.Method)
	require.Len(t, got.Params, 2)
	txs, ok := got.Params[0].([]any)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), txs[0])
}

func TestJitoSendBundleErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"bundle dropped"}}`))
	}))
	defer srv.Close()

	j, err := NewJitoClient(srv.URL, []string{solana.SystemProgramID.String()})
	require.NoError(t, err)

	_, err = j.SendBundle(context.Background(), [][]byte{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle dropped")

	_, err = j.SendBundle(context.Background(), nil)
	assert.Error(t, err)
}

func TestJitoRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	j, err := NewJitoClient(srv.URL, []string{solana.SystemProgramID.String()})
	require.NoError(t, err)
	_, err = j.SendBundle(context.Background(), [][]byte{{1}})
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestNewJitoClientValidation(t *testing.T) {
	_, err := NewJitoClient("http://x", nil)
	assert.Error(t, err)
	_, err = NewJitoClient("http://x", []string{"bad key"})
	assert.Error(t, err)

	j, err := NewJitoClient("http://x", []string{solana.SystemProgramID.String()})
	require.NoError(t, err)
	assert.Equal(t, solana.SystemProgramID, j.TipAccount())
}
