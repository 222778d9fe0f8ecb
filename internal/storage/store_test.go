package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested"))
	require.NoError(t, err)

	_, err = s.GetData(ctx, "champions:testnet")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveData(ctx, "champions:testnet", []byte(`{"v":1}`)))
	require.NoError(t, s.SaveData(ctx, "champions:testnet", []byte(`{"v":2}`)))

	got, err := s.GetData(ctx, "champions:testnet")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "champions_testnet.json", entries[0].Name())
}

func TestFileStore_KeysCannotEscapeDir(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	p := s.path("../../etc/passwd")
	assert.True(t, strings.HasPrefix(p, s.Dir()))
	assert.Equal(t, s.Dir(), filepath.Dir(p))
}

func TestFileStore_CancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.SaveData(ctx, "k", []byte("x")))
	_, err = s.GetData(ctx, "k")
	assert.Error(t, err)
}

func TestFileStore_FailedWriteKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveData(ctx, "pop", []byte("old")))

	// a non-empty directory at the target path makes the rename fail
	target := s.path("blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))
	assert.Error(t, s.SaveData(ctx, "blocked", []byte("new")))

	got, err := s.GetData(ctx, "pop")
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

type point struct {
	X int    `json:"x"`
	Y string `json:"y"`
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, SaveJSON(ctx, s, "p", point{X: 3, Y: "z"}))
	var got point
	require.NoError(t, GetJSON(ctx, s, "p", &got))
	assert.Equal(t, point{X: 3, Y: "z"}, got)

	require.NoError(t, s.SaveData(ctx, "bad", []byte("{")))
	assert.Error(t, GetJSON(ctx, s, "bad", &got))
	assert.ErrorIs(t, GetJSON(ctx, s, "missing", &got), ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, Config{Backend: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Config{Backend: "s3"})
	assert.Error(t, err)

	// nothing listens on port 1
	_, err = Open(ctx, Config{Backend: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisStore_WrapKey(t *testing.T) {
	assert.Equal(t, "genome-bot:champions:live", (&RedisStore{prefix: "genome-bot"}).wrapKey("champions:live"))
	assert.Equal(t, "champions:live", (&RedisStore{}).wrapKey("champions:live"))
}

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: "redis", RedisAddr: mr.Addr(), RedisPrefix: "genome-bot"})
	require.NoError(t, err)
	defer s.Close()
	require.IsType(t, &RedisStore{}, s)

	_, err = s.GetData(ctx, "population:paper")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveData(ctx, "population:paper", []byte(`{"groups":1}`)))
	got, err := s.GetData(ctx, "population:paper")
	require.NoError(t, err)
	assert.Equal(t, `{"groups":1}`, string(got))

	raw, err := mr.Get("genome-bot:population:paper")
	require.NoError(t, err)
	assert.Equal(t, `{"groups":1}`, raw)
	assert.Zero(t, mr.TTL("genome-bot:population:paper"))

	require.NoError(t, s.SaveData(ctx, "population:paper", []byte(`{"groups":2}`)))
	var v map[string]int
	require.NoError(t, GetJSON(ctx, s, "population:paper", &v))
	assert.Equal(t, 2, v["groups"])

	mr.SetError("injected failure")
	_, err = s.GetData(ctx, "population:paper")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
