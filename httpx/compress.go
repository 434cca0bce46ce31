package httpx

import (
	"bytes"
	"compress/gzip"
	"time"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// GzipOrIdentity compresses payload for upload and returns the encoded bytes
// with the matching Content-Encoding value. Compression failure degrades to
// the uncompressed payload instead of failing the request: a bigger upload
// beats no upload. The degradation is reported through hooks when set.
func GzipOrIdentity(payload []byte, hooks *resilience.Hooks) ([]byte, string) {
	var buf bytes.Buffer

	writer := gzip.NewWriter(&buf)

	_, err := writer.Write(payload)
	if err == nil {
		err = writer.Close()
	}

	if err != nil {
		ev := resilience.DegradationEvent{
			Resource:  "gzip",
			Code:      resilience.CodeUnknown,
			Err:       err,
			Timestamp: time.Now(),
		}

		go func() {
			if hooks != nil && hooks.OnDegraded != nil {
				hooks.OnDegraded(ev)
			}
		}()

		return payload, "identity"
	}

	// Tiny payloads can grow under gzip; send whichever is smaller.
	if buf.Len() >= len(payload) {
		return payload, "identity"
	}

	return buf.Bytes(), "gzip"
}
