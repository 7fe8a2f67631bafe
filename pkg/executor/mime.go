package executor

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// guessContentType looks at the extension first and falls back to sniffing
// the file content.
func guessContentType(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}

	mtype, err := mimetype.DetectFile(filename)
	if err != nil {
		return ""
	}
	return mtype.String()
}
