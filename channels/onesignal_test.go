package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captureTransport struct {
	req  *http.Request
	body []byte
}

func (ct *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ct.req = req
	ct.body, _ = io.ReadAll(req.Body)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"id":"n-1"}`)),
		Header:     make(http.Header),
	}, nil
}

func TestOneSignalSendPayload(t *testing.T) {
	capture := &captureTransport{}
	ch := NewOneSignal("app-1", "key-1", "https://app.test.local")
	ch.Client = &http.Client{Transport: capture}

	res := ch.Send(context.Background(), []uint{4, 9}, Message{
		Title:     "Pago registrado",
		Body:      "Se registró un pago",
		LaunchURL: "agendo://finance",
	})
	assert.Equal(t, Result{OK: 2, Total: 2}, res)

	var payload map[string]interface{}
	assert.NoError(t, json.Unmarshal(capture.body, &payload))
	assert.Equal(t, "app-1", payload["app_id"])
	assert.Equal(t, []interface{}{"4", "9"}, payload["include_external_user_ids"])
	assert.Equal(t, "https://app.test.local/icons/icon-192.png", payload["large_icon"])
	assert.Equal(t, "agendo://finance", payload["url"])
	assert.Equal(t, "Basic key-1", capture.req.Header.Get("Authorization"))
}

func TestOneSignalOmitsIconWithoutBaseURL(t *testing.T) {
	capture := &captureTransport{}
	ch := NewOneSignal("app-1", "key-1", "")
	ch.Client = &http.Client{Transport: capture}

	ch.Send(context.Background(), []uint{4}, Message{Title: "Prueba", Body: "Cuerpo"})

	var payload map[string]interface{}
	assert.NoError(t, json.Unmarshal(capture.body, &payload))
	_, has := payload["large_icon"]
	assert.False(t, has)
}

func TestOneSignalDisabledWithoutCredentials(t *testing.T) {
	assert.False(t, NewOneSignal("", "key", "").Enabled())
	assert.False(t, NewOneSignal("app", "", "").Enabled())
	assert.True(t, NewOneSignal("app", "key", "").Enabled())
}
