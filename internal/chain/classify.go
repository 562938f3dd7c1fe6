package chain

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// IsTransient detects short-lived provider/transport failures worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var he rpc.HTTPError
	if errors.As(err, &he) {
		return transientStatus(he.StatusCode)
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "client.timeout exceeded"),
		strings.Contains(s, "i/o timeout"),
		strings.Contains(s, "tls handshake timeout"),
		strings.Contains(s, "eof"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "connection refused"),
		strings.Contains(s, "too many requests"),
		strings.Contains(s, "-32005"),
		strings.Contains(s, "bad gateway"),
		strings.Contains(s, "service unavailable"),
		strings.Contains(s, "gateway timeout"):
		return true
	}
	return false
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// ClassifyRPCError returns a coarse class for RPC errors, used in logs and metrics labels.
func ClassifyRPCError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "rpc_timeout"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "rpc_timeout"
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "context deadline exceeded"):
		return "rpc_timeout"
	case strings.Contains(s, "connection reset"), strings.Contains(s, "broken pipe"), strings.Contains(s, "eof"):
		return "rpc_unavailable"
	case strings.Contains(s, "too many requests"), strings.Contains(s, "-32005"):
		return "rpc_rate_limited"
	case strings.Contains(s, "nonce too low"), strings.Contains(s, "replacement transaction underpriced"),
		strings.Contains(s, "already known"):
		return "nonce_conflict"
	case strings.Contains(s, "insufficient funds"):
		return "insufficient_funds"
	case strings.Contains(s, "execution reverted"):
		return "reverted"
	}
	return "rpc_error"
}
