package web

// handlers_common.go contains request parsing helpers shared by handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/fieldmap/internal/core"
)

// maxJSONBody caps JSON request bodies (mapping and options payloads).
const maxJSONBody = 1 << 20

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("invalid request body")

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// readUpload returns the uploaded file name and contents. It accepts a
// multipart form with a "file" part, or a raw body named by ?name=.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return "", nil, tooLargeOr(err, fmt.Errorf("%w: %v", errBadRequest, err))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, errNoFile
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, tooLargeOr(err, fmt.Errorf("read upload: %w", err))
	}
	if len(data) == 0 {
		return "", nil, errNoFile
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return name, data, nil
}

// tooLargeOr converts MaxBytesReader overflows into a file-size error.
func tooLargeOr(err, fallback error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, mbe.Limit)
	}
	return fallback
}
