package object

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holaplex/imgopt/config"
	"github.com/holaplex/imgopt/store"
)

func ipfsOrigin() config.Origin {
	return config.Origin{
		Name:     "ipfs",
		Endpoint: "https://ipfs.io/ipfs",
		Cache:    config.Cache{MaxAge: config.DefaultMaxAge},
	}
}

func TestRename(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	obj.Rename("nested/dir/img 1.png")
	assert.Equal(t, "somecid-_-nested-_-dir-_-img-_-1.png", obj.Name)
}

func TestURL(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	assert.Equal(t, "https://ipfs.io/ipfs/somecid", obj.URL())

	obj.Rename("nested/img.png")
	assert.Equal(t, "https://ipfs.io/ipfs/somecid/nested/img.png", obj.URL())
}

func TestFromURL(t *testing.T) {
	const raw = "https://example.com/some/image.png?v=2"
	obj := FromURL(raw)

	sum := sha1.Sum([]byte(raw))
	assert.Equal(t, hex.EncodeToString(sum[:]), obj.Name)
	assert.Equal(t, "misc", obj.Origin.Name)
	assert.Equal(t, raw, obj.URL(), "URL mode ignores the name")
	assert.Equal(t, obj.Name, obj.Hash(), "hash and name agree in URL mode")
}

func TestSetPaths(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	obj.Scale = 400
	obj.SetPaths("storage")
	assert.Equal(t, "storage/base/ipfs/somecid", obj.Paths.Base)
	assert.Equal(t, "storage/mod/ipfs/400/somecid", obj.Paths.Modified)
}

func TestCFPath(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	obj.SetPaths("storage")
	assert.Equal(t, "/base/ipfs/somecid", obj.CFPath())

	obj.Scale = 400
	obj.SetPaths("storage")
	assert.Equal(t, "/mod/ipfs/400/somecid", obj.CFPath())
}

func TestValid(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	assert.False(t, obj.Valid(), "no download yet")

	obj.Status = 200
	obj.ContentType = "text/plain"
	assert.False(t, obj.Valid(), "gateway error page")

	obj.ContentType = "text/html"
	assert.False(t, obj.Valid(), "gateway error page")

	obj.ContentType = "image/png"
	assert.True(t, obj.Valid())

	obj.Status = 404
	assert.False(t, obj.Valid())
}

func TestShouldRetry(t *testing.T) {
	obj := New(ipfsOrigin(), "somecid")
	obj.Retries = 4
	assert.True(t, obj.ShouldRetry(5))
	obj.Retries = 5
	assert.False(t, obj.ShouldRetry(5))
}

func TestSave(t *testing.T) {
	root := t.TempDir()

	obj := New(ipfsOrigin(), "somecid")
	obj.Scale = 400
	obj.SetPaths(root)
	obj.Data = []byte("base")
	require.NoError(t, obj.Save([]byte("base")), "identical payload is not persisted")
	assert.NoFileExists(t, obj.Paths.Modified)

	require.NoError(t, store.EnsureDirs(obj.Paths))
	require.NoError(t, obj.Save([]byte("rendition")))
	assert.FileExists(t, obj.Paths.Modified)
}
