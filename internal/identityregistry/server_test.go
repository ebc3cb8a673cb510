package identityregistry

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "identities.db")
	storage, err := NewStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	cfg := DefaultConfig()
	cfg.AuthTokens = []string{"test-token"}
	return NewServer(storage, cfg)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, strings.NewReader(string(b)))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRegisterGetRoundTrip(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	k1 := base64.StdEncoding.EncodeToString([]byte("fake-der-bytes"))
	w := doJSON(t, h, http.MethodPost, "/identities/register", "test-token", RegisterRequest{
		NodeID: "node-0", K1PubB64: k1, Fingerprint: "fp-a",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/identities/get?node_id=node-0", "test-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp GetIdentityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "node-0", resp.Record.NodeID)
	require.Equal(t, k1, resp.Record.K1PubB64)
}

func TestRegisterRejectsFingerprintMismatch(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	k1 := base64.StdEncoding.EncodeToString([]byte("key"))

	w := doJSON(t, h, http.MethodPost, "/identities/register", "test-token", RegisterRequest{NodeID: "n", K1PubB64: k1, Fingerprint: "fp-a"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodPost, "/identities/register", "test-token", RegisterRequest{NodeID: "n", K1PubB64: k1, Fingerprint: "fp-b"})
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	w := doJSON(t, h, http.MethodPost, "/identities/register", "", RegisterRequest{NodeID: "n", K1PubB64: "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListReturnsAllRegistered(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	for _, id := range []string{"a", "b", "c"} {
		w := doJSON(t, h, http.MethodPost, "/identities/register", "test-token", RegisterRequest{
			NodeID: id, K1PubB64: base64.StdEncoding.EncodeToString([]byte(id)),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := doJSON(t, h, http.MethodGet, "/identities/list", "test-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ListIdentitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 3)
}
