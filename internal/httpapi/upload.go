package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

const (
	faceField  = "face_image"
	voiceField = "voice_recording"

	// maxSampleBody caps a biometric upload: a camera frame or a few
	// seconds of WAV audio.
	maxSampleBody = 10 << 20
	maxJSONBody   = 64 << 10
)

// readSample returns the biometric sample of a stage call.  Browsers send
// multipart/form-data with the sample under field; kiosks may post the raw
// bytes instead.  A missing sample yields nil so the service can name it.
func readSample(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSampleBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(maxSampleBody); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
