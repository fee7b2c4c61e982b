package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/tripvoice/pkg/adapters/file"
	"github.com/aretw0/tripvoice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentSink_Deliver(t *testing.T) {
	dir := t.TempDir()
	sink := file.NewDocumentSink(filepath.Join(dir, "downloads"))

	path, err := sink.Deliver(context.Background(), ports.Document{Name: "trip_itinerary.pdf", Data: []byte("%PDF-1")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "downloads", "trip_itinerary.pdf"), path)

	// A second export replaces the first.
	_, err = sink.Deliver(context.Background(), ports.Document{Name: "trip_itinerary.pdf", Data: []byte("%PDF-2")})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "downloads"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestDocumentSink_UniqueNames(t *testing.T) {
	sink := file.NewDocumentSink(t.TempDir(), file.WithUniqueNames())

	a, err := sink.Deliver(context.Background(), ports.Document{Name: "trip_itinerary.pdf", Data: []byte("a")})
	require.NoError(t, err)
	b, err := sink.Deliver(context.Background(), ports.Document{Name: "trip_itinerary.pdf", Data: []byte("b")})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, ".pdf", filepath.Ext(a))
}

func TestDocumentSink_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	sink := file.NewDocumentSink(dir)

	path, err := sink.Deliver(context.Background(), ports.Document{Name: "../../escape.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.pdf"), path)
}
