package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOpenReadWrite(t *testing.T) {
	fsys := New()
	require.True(t, fsys.Create("a.txt", 0))
	require.False(t, fsys.Create("a.txt", 0), "create fails if the name exists")

	h, ok := fsys.Open("a.txt")
	require.True(t, ok)
	n, err := h.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, h.Size())

	h.Seek(0)
	buf := make([]byte, 5)
	assert.Equal(t, 5, h.Read(buf))
	assert.Equal(t, "hello", string(buf))
}

func TestOpenUnknownFails(t *testing.T) {
	fsys := New()
	_, ok := fsys.Open("missing")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 0)
	assert.True(t, fsys.Remove("a.txt"))
	assert.False(t, fsys.Remove("a.txt"), "removing twice fails")
	_, ok := fsys.Open("a.txt")
	assert.False(t, ok)
}

func TestListReturnsEveryName(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 0)
	fsys.Create("b.txt", 0)
	names := fsys.List()
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestIndependentHandlesShareUnderlyingData(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 0)
	h1, _ := fsys.Open("a.txt")
	h1.Write([]byte("abc"))

	h2, _ := fsys.Open("a.txt")
	assert.Equal(t, int64(0), h2.Tell(), "a fresh open starts its own cursor at 0")
	buf := make([]byte, 3)
	assert.Equal(t, 3, h2.Read(buf), "second open sees the first open's writes")
	assert.Equal(t, "abc", string(buf))
}

func TestReopenGivesIndependentCursor(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 5)
	h, _ := fsys.Open("a.txt")
	h.Seek(3)

	reopened := fsys.Reopen(h)
	assert.Equal(t, int64(0), reopened.Tell(), "Reopen starts at offset 0 regardless of h's cursor")
	assert.Equal(t, h.Name(), reopened.Name())
}

func TestWriteGrowsFile(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 2)
	h, _ := fsys.Open("a.txt")
	h.Seek(2)
	n, err := h.Write([]byte("xyz"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 5, h.Size())
}

func TestDenyWriteBlocksWrites(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 0)
	h, _ := fsys.Open("a.txt")
	h.DenyWrite()

	_, err := h.Write([]byte("x"))
	require.Error(t, err)

	h.AllowWrite()
	_, err = h.Write([]byte("x"))
	assert.NoError(t, err, "write succeeds once every deny-write hold is released")
}

func TestDenyWriteIsRefCounted(t *testing.T) {
	fsys := New()
	fsys.Create("a.txt", 0)
	h1, _ := fsys.Open("a.txt")
	h2 := fsys.Reopen(h1)

	h1.DenyWrite()
	h2.DenyWrite()
	h1.AllowWrite()
	_, err := h1.Write([]byte("x"))
	assert.Error(t, err, "still write-denied while h2's hold is outstanding")

	h2.AllowWrite()
	_, err = h1.Write([]byte("x"))
	assert.NoError(t, err)
}
