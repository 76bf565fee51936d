package blob

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificatePath(t *testing.T) {
	issued := time.Date(2026, 3, 7, 23, 30, 0, 0, time.UTC)
	assert.Equal(
		t, "user-1/2026-03-07/typely-certificate-TYP-20260307-AB12.pdf",
		CertificatePath("user-1", "TYP-20260307-AB12", issued),
	)
}

func TestCleanPath(t *testing.T) {
	for _, bad := range []string{"", "/", "../etc/passwd", "a/../../b"} {
		_, err := cleanPath(bad)
		assert.Error(t, err, bad)
	}
	c, err := cleanPath("/user//2026-01-01/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "user/2026-01-01/x.pdf", c)
}

func exerciseStore(t *testing.T, s ListableStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Download(ctx, "u/2026-01-01/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Upload(ctx, "u/2026-01-01/a.pdf", []byte("%PDF-a"), ContentTypePDF))
	require.NoError(t, s.Upload(ctx, "v/2026-01-02/b.pdf", []byte("%PDF-b"), ContentTypePDF))

	data, err := s.Download(ctx, "u/2026-01-01/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-a"), data)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyU, err := s.List(ctx, "u/")
	require.NoError(t, err)
	require.Len(t, onlyU, 1)
	assert.Equal(t, "u/2026-01-01/a.pdf", onlyU[0].Path)
	assert.Equal(t, int64(6), onlyU[0].Size)

	require.NoError(t, s.Delete(ctx, "u/2026-01-01/a.pdf"))
	require.NoError(t, s.Delete(ctx, "u/2026-01-01/a.pdf"))
	_, err = s.Download(ctx, "u/2026-01-01/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore("")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

// fakeObjectStorage is a minimal in-memory object storage REST server
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	auth    string
}

func (f *fakeObjectStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.auth {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && key == "":
		prefix := r.URL.Query().Get("prefix")
		out := []Object{}
		for k, v := range f.objects {
			if strings.HasPrefix(k, prefix) {
				out = append(out, Object{Path: k, Size: int64(len(v)), ModTime: time.Now()})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet:
		v, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", ContentTypePDF)
		_, _ = w.Write(v)
	case r.Method == http.MethodDelete:
		if _, ok := f.objects[key]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestHTTPStore(t *testing.T) {
	fake := &fakeObjectStorage{objects: map[string][]byte{}, auth: "key"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewHTTPStore(HTTPStoreConfig{BaseURL: srv.URL, APIKey: "key", Timeout: time.Second})
	require.NoError(t, err)
	exerciseStore(t, s)

	unauthorized, err := NewHTTPStore(HTTPStoreConfig{BaseURL: srv.URL, APIKey: "wrong"})
	require.NoError(t, err)
	assert.Error(t, unauthorized.Upload(context.Background(), "u/x.pdf", []byte("x"), ContentTypePDF))
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	src, err := NewBadgerStore("")
	require.NoError(t, err)
	defer src.Close()
	dst, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, src.Upload(ctx, "u/2026-01-01/a.pdf", []byte("a"), ContentTypePDF))
	require.NoError(t, src.Upload(ctx, "u/2026-01-02/b.pdf", []byte("b"), ContentTypePDF))

	n, err := Migrate(ctx, src, dst, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := dst.Download(ctx, "u/2026-01-02/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}

func TestMigrateMissing(t *testing.T) {
	ctx := context.Background()
	src, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	dst, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, src.Upload(ctx, "u/2026-01-01/a.pdf", []byte("a"), ContentTypePDF))
	require.NoError(t, src.Upload(ctx, "u/2026-01-02/b.pdf", []byte("b"), ContentTypePDF))
	require.NoError(t, dst.Upload(ctx, "u/2026-01-01/a.pdf", []byte("kept"), ContentTypePDF))

	n, err := MigrateMissing(ctx, src, dst, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := dst.Download(ctx, "u/2026-01-01/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), data)
	data, err = dst.Download(ctx, "u/2026-01-02/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
}
