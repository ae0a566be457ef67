package http

import (
	"io"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

// newMultipart writes a multipart form with one "file" part and the given
// fields, returning its content type.
func newMultipart(t *testing.T, w io.Writer, filename, content string, fields map[string]string) string {
	t.Helper()
	mw := multipart.NewWriter(w)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType()
}
