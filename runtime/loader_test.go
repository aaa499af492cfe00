package runtime

import (
	"chat-realtime/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"words/en.txt":    {Data: []byte("damn\r\nhell\n\n  crap  \n")},
		"words/fr.txt":    {Data: []byte("merde\nhell\n")},
		"words/README.md": {Data: []byte("ignored")},
	}

	data, err := NewCensoredLoader(fsys).LoadAll("words")

	req.NoError(err)
	req.Equal([]string{"crap", "damn", "hell", "merde"}, data.Words)
	req.Equal([]string{"en", "fr"}, data.Languages)
}

func TestCensoredLoader_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"words/en.txt": {Data: []byte("\n \n")}}

	_, err := NewCensoredLoader(fsys).LoadAll("words")
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestDefaultCensoredWords(t *testing.T) {
	req := require.New(t)

	data, err := DefaultCensoredWords()

	req.NoError(err)
	req.NotEmpty(data.Words)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
}
