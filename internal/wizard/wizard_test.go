package wizard

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSaver struct {
	saved []string
	err   error
}

func (m *memSaver) Save(key string) error {
	m.saved = append(m.saved, key)
	return m.err
}

func reader(value string, err error) func(string) (string, error) {
	return func(string) (string, error) { return value, err }
}

func TestSetKey_Saves(t *testing.T) {
	var out bytes.Buffer
	saver := &memSaver{}
	require.NoError(t, setKey(&out, reader("  AIzaSecret1234 \n", nil), saver))
	assert.Equal(t, []string{"AIzaSecret1234"}, saver.saved)
	assert.Contains(t, out.String(), "**********1234")
	assert.NotContains(t, out.String(), "AIzaSecret")
}

func TestSetKey_EmptyClears(t *testing.T) {
	var out bytes.Buffer
	saver := &memSaver{}
	require.NoError(t, setKey(&out, reader("", nil), saver))
	assert.Equal(t, []string{""}, saver.saved)
	assert.Contains(t, out.String(), "cleared")
}

func TestSetKey_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, setKey(&out, reader("", errors.New("tty gone")), &memSaver{}))
	assert.Error(t, setKey(&out, reader("k", nil), &memSaver{err: errors.New("disk full")}))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "**cdef", Mask("abcdef"))
}
