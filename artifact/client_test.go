package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipArchive(t *testing.T, entries map[string]string) []byte {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func artifactStoreFactory(t *testing.T, listing string, archive []byte) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "verified", r.URL.Query().Get("type"))
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(listing))
	})
	mux.HandleFunc("/get-proof-zip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "verifiedProofs", r.URL.Query().Get("status"))
		assert.Equal(t, "binary", r.URL.Query().Get("format"))
		w.Write(archive)
	})
	return httptest.NewServer(mux)
}

const snapshotDocument = `{
	"registeredKeys": ["0xAA", "0xBB"],
	"storageEntries": [{"key": "0xBB", "value": "0x0de0b6b3a7640000"}],
	"preAllocatedLeaves": [{"key": "0xAA", "value": "0x1"}]
}`

func TestFetchLatestVerifiedSnapshot(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"proof.json":         `{}`,
		"state_snapshot.json": snapshotDocument,
	})

	srv := artifactStoreFactory(t, `[
		{"key": "proof-3", "sequenceNumber": 3},
		{"key": "proof-1", "sequenceNumber": 1},
		{"key": "proof-2", "sequenceNumber": 2}
	]`, archive)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	snapshot, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xAA", "0xBB"}, snapshot.RegisteredKeys)
}

func TestListVerifiedProofsSortsBySequenceNumber(t *testing.T) {
	srv := artifactStoreFactory(t, `[
		{"key": "proof-9", "sequenceNumber": 9},
		{"key": "proof-4", "sequenceNumber": 4}
	]`, nil)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	records, err := client.ListVerifiedProofs(context.Background(), "0x01")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "proof-4", records[0].Key)
	assert.Equal(t, "proof-9", records[1].Key)
}

// an empty verified proof list must fail before any archive fetch is attempted
func TestFetchLatestVerifiedSnapshotNoProofs(t *testing.T) {
	archiveFetched := false
	mux := http.NewServeMux()
	mux.HandleFunc("/channels/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/get-proof-zip", func(w http.ResponseWriter, r *http.Request) {
		archiveFetched = true
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	assert.ErrorIs(t, err, ErrNoProofsFound)
	assert.False(t, archiveFetched)
}

func TestFetchLatestVerifiedSnapshotCaseInsensitiveEntryName(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"STATE_SNAPSHOT.JSON": snapshotDocument,
	})

	srv := artifactStoreFactory(t, `[{"key": "proof-1", "sequenceNumber": 1}]`, archive)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	snapshot, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Len(t, snapshot.RegisteredKeys, 2)
}

func TestFetchLatestVerifiedSnapshotMissingEntry(t *testing.T) {
	archive := zipArchive(t, map[string]string{"proof.json": `{}`})

	srv := artifactStoreFactory(t, `[{"key": "proof-1", "sequenceNumber": 1}]`, archive)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	assert.ErrorIs(t, err, ErrSnapshotMissing)
}

func TestFetchLatestVerifiedSnapshotCorrupt(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"state_snapshot.json": `{"storageEntries": []}`, // registeredKeys absent
	})

	srv := artifactStoreFactory(t, `[{"key": "proof-1", "sequenceNumber": 1}]`, archive)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	assert.ErrorIs(t, err, ErrSnapshotCorrupt)
}

// remote status and message must propagate to the caller
func TestFetchProofArchiveFailurePropagatesStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"key": "proof-1", "sequenceNumber": 1}]`))
	})
	mux.HandleFunc("/get-proof-zip", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "archive unavailable", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.FetchLatestVerifiedSnapshot(context.Background(), "0x01")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactFetch)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "archive unavailable")
}
