package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	formatJSON    = "json"
	formatMsgpack = "msgpack"

	contentTypeMsgpack = "application/msgpack"
)

// wantsMsgpack reports whether the client asked for a binary body, either
// with ?format=msgpack or an Accept header.
func wantsMsgpack(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == formatMsgpack
	}
	return strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack)
}

// marshalMsgpack encodes v using the json tags so both formats share field names.
func marshalMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpack encode: %w", err)
	}
	return buf.Bytes(), nil
}

func writeMsgpack(w http.ResponseWriter, data interface{}) {
	body, err := marshalMsgpack(data)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.Write(body)
}
