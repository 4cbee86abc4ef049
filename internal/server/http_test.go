package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedListener struct {
	ln  net.Listener
	err error
}

func (f fixedListener) Listen(_, _ string) (net.Listener, error) {
	return f.ln, f.err
}

func TestHTTPServer_StartStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := NewHTTPServer(handler, ln.Addr().String())
	assert.Equal(t, ln.Addr().String(), srv.Address())

	done := make(chan error, 1)
	go func() { done <- srv.Start(fixedListener{ln: ln}) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get(fmt.Sprintf("http://%s/", ln.Addr().String()))
		return err == nil
	}, time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	assert.NoError(t, <-done)
}

func TestHTTPServer_StartListenError(t *testing.T) {
	srv := NewHTTPServer(http.NotFoundHandler(), ":0")
	err := srv.Start(fixedListener{err: errors.New("address in use")})
	assert.ErrorContains(t, err, "failed to listen")
}
