package handler

import (
	"context"
	"net"
	"net/http"
	"time"
)

// NewServer returns an http.Server whose request contexts are cancelled as
// soon as Shutdown starts, so long-lived change streams end and let Shutdown
// finish.
func NewServer(addr string, h http.Handler, timeout time.Duration) *http.Server {
	base, cancel := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
