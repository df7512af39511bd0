package handlers

import (
	"fmt"
	"io"
	"mime/multipart"

	"estateBack/internal/services"
)

// photoFormKeys are the multipart keys photo files may arrive under.
var photoFormKeys = []string{"photos", "photos[]", "photo"}

// collectImageFiles собирает все файлы по указанным ключам формы.
func collectImageFiles(form *multipart.Form, keys ...string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}

	var result []*multipart.FileHeader
	for _, key := range keys {
		if headers, ok := form.File[key]; ok {
			result = append(result, headers...)
		}
	}
	return result
}

// readPhotoUploads reads every photo part. At most maxBytes+1 bytes of a
// part are read so oversized files are still detectable downstream.
func readPhotoUploads(form *multipart.Form, maxBytes int64) ([]services.PhotoUpload, error) {
	headers := collectImageFiles(form, photoFormKeys...)
	uploads := make([]services.PhotoUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh, maxBytes)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, services.PhotoUpload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open photo %q: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo %q: %w", fh.Filename, err)
	}
	return data, nil
}
