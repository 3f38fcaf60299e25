package clientstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	_, ok, err := s.Get(KeySelectedFactory)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(KeySelectedFactory, "0xabc"))
	v, ok, err := s.Get(KeySelectedFactory)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xabc", v)

	// 空值也算存在
	require.NoError(t, s.Set(KeyWalletConnected, ""))
	_, ok, err = s.Get(KeyWalletConnected)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Delete(KeyWalletConnected))
	_, ok, err = s.Get(KeyWalletConnected)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, s.Set("  ", "x"), ErrEmptyKey)

	type token struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	}
	in := []token{{Address: "0x1", Symbol: "AAA"}}
	require.NoError(t, SetJSON(s, KeyCustomTokens, in))
	var out []token
	found, err := GetJSON(s, KeyCustomTokens, &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestJSONFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONFileStore(dir)
	exerciseStore(t, s)

	// 重新打开后数据仍在
	again := NewJSONFileStore(dir)
	v, ok, err := again.Get(KeySelectedFactory)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xabc", v)
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestOpenByBackend(t *testing.T) {
	s, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	_, err = Open(Options{Backend: "redis"})
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("")
	require.NoError(t, err)
	require.Nil(t, k)

	k, err = ParseKey("0x" + "11223344556677881122334455667788112233445566778811223344556677ff")
	require.NoError(t, err)
	require.Len(t, k, 32)

	_, err = ParseKey("abcd")
	require.Error(t, err)
}
