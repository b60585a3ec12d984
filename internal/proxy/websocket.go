package proxy

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IsUpgradeRequest reports whether the inbound request asks for a WebSocket
// upgrade. Only the Upgrade header is consulted.
func IsUpgradeRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Tunnel performs a raw upgrade-aware exchange with the target. The original
// request is replayed verbatim and the upstream's upgrade response is
// returned byte-for-byte; no header rewriting or hardening is applied.
// Framed duplex traffic (shell sessions, log streams) cannot tolerate header
// reconstruction or body re-wrapping.
//
// The returned bool reports whether the client connection was hijacked.
// While it is false the ResponseWriter is still usable, so the caller can
// answer a failed tunnel with a regular error response.
func (f *Forwarder) Tunnel(w http.ResponseWriter, r *http.Request, target *url.URL) (bool, error) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return false, fmt.Errorf("response writer does not support hijacking")
	}

	backendConn, err := dialTarget(target)
	if err != nil {
		return false, fmt.Errorf("failed to dial upstream %s: %w", target.Host, err)
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		backendConn.Close()
		return false, fmt.Errorf("failed to hijack client connection: %w", err)
	}
	defer clientConn.Close()
	defer backendConn.Close()

	// Replay the original upgrade request against the target URL
	reqURI := target.Path
	if target.RawQuery != "" {
		reqURI += "?" + target.RawQuery
	}
	fmt.Fprintf(backendConn, "%s %s HTTP/1.1\r\n", r.Method, reqURI)
	fmt.Fprintf(backendConn, "Host: %s\r\n", target.Host)
	for key, values := range r.Header {
		for _, v := range values {
			fmt.Fprintf(backendConn, "%s: %s\r\n", key, v)
		}
	}
	backendConn.Write([]byte("\r\n"))

	// Bidirectional splice; whatever the upstream answers (101 or otherwise)
	// flows back to the client untouched.
	errCh := make(chan error, 2)
	go func() {
		// clientBuf may hold bytes already read off the client socket
		_, err := io.Copy(backendConn, clientBuf)
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(clientConn, backendConn)
		errCh <- err
	}()
	<-errCh

	// Let the other direction drain briefly before tearing down
	clientConn.SetDeadline(time.Now().Add(time.Second))
	backendConn.SetDeadline(time.Now().Add(time.Second))
	return true, nil
}

func dialTarget(target *url.URL) (net.Conn, error) {
	addr := target.Host
	secure := target.Scheme == "https" || target.Scheme == "wss"
	if !strings.Contains(addr, ":") {
		if secure {
			addr += ":443"
		} else {
			addr += ":80"
		}
	}

	if secure {
		return tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, &tls.Config{
			ServerName: target.Hostname(),
		})
	}
	return net.DialTimeout("tcp", addr, 10*time.Second)
}
