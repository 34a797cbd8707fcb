package incidentlog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC)
	assert.Equal(t, "2024-03-09 14-05-07.123456789.txt", EntryName(ts))
}

func TestFileSink_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "incidents")
	s, err := NewFileSink(dir)
	require.NoError(t, err)

	name := EntryName(time.Unix(0, 0))
	require.NoError(t, s.Write(context.Background(), name, []byte("procedure GetProducts failed\n")))
	require.NoError(t, s.Write(context.Background(), name, []byte("second line\n")))

	got, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "procedure GetProducts failed\nsecond line\n", string(got))
}

func TestFileSink_NameCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileSink(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), "../../escape.txt", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	require.NoError(t, err)
}

type recordingSink struct {
	names []string
	err   error
}

func (r *recordingSink) Write(_ context.Context, name string, _ []byte) error {
	r.names = append(r.names, name)
	return r.err
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("bucket unavailable")}
	c := &recordingSink{}

	err := MultiSink{a, b, c}.Write(context.Background(), "x.txt", []byte("body"))
	require.ErrorContains(t, err, "bucket unavailable")

	assert.Equal(t, []string{"x.txt"}, a.names)
	assert.Equal(t, []string{"x.txt"}, c.names, "a failing sink must not stop the others")

	require.NoError(t, MultiSink{a}.Write(context.Background(), "y.txt", nil))
	require.NoError(t, Discard{}.Write(context.Background(), "z.txt", nil))
}
