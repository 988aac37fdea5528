package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
)

func TestDocument_RecordConstructReplacesExisting(t *testing.T) {
	t.Parallel()

	doc := New(identifier.NewRunbookID("demo").ID, "default")
	id := identifier.NewRunbookID("construct-a").ID

	doc.RecordConstruct(ConstructRecord{ID: id, Result: value.Int(1)})
	doc.RecordConstruct(ConstructRecord{ID: id, Result: value.Int(2)})

	require.Len(t, doc.Constructs, 1)
	require.True(t, value.Equal(value.Int(2), doc.Constructs[0].Result))
}

func TestDocument_CachedResultLooksUpByID(t *testing.T) {
	t.Parallel()

	doc := New(identifier.NewRunbookID("demo").ID, "default")
	id := identifier.NewRunbookID("construct-a").ID
	doc.RecordConstruct(ConstructRecord{ID: id, Result: value.String("ok"), Fingerprint: []byte{1, 2, 3}})

	result, fingerprint, ok := doc.CachedResult(id)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, fingerprint)
	s, _ := result.AsString()
	require.Equal(t, "ok", s)

	_, _, ok = doc.CachedResult(identifier.NewRunbookID("missing").ID)
	require.False(t, ok)
}

func TestYAMLCodec_SaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	doc := New(identifier.NewRunbookID("demo").ID, "default")
	id := identifier.NewRunbookID("construct-a").ID
	doc.RecordConstruct(ConstructRecord{ID: id, Result: value.Int(99), Fingerprint: []byte{9, 9}})
	doc.RecordSigner(SignerRecord{ID: id, State: value.String("nonce-1")})

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	codec := YAMLCodec{}
	require.NoError(t, Save(path, doc, codec))

	loaded, err := Load(path, codec)
	require.NoError(t, err)
	require.Equal(t, doc.FlowName, loaded.FlowName)
	require.Len(t, loaded.Constructs, 1)
	require.Len(t, loaded.Signers, 1)

	result, fingerprint, ok := loaded.CachedResult(id)
	require.True(t, ok)
	require.Equal(t, []byte{9, 9}, fingerprint)
	n, _ := result.AsInt()
	require.Equal(t, int64(99), n.Int64())
}

func TestYAMLCodec_RejectsNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	codec := YAMLCodec{}
	doc := New(identifier.NewRunbookID("demo").ID, "default")
	doc.SchemaVersion = CurrentVersion + 1

	data, err := codec.Encode(doc)
	require.NoError(t, err)

	_, err = codec.Decode(data)
	require.Error(t, err)
}
