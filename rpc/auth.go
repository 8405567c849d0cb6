package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"gigchain/crypto"
)

// AuthConfig controls how callers are identified. With auth enabled the
// caller is the subject of an HS256 bearer token; otherwise it is read from
// the "caller" request parameter.
type AuthConfig struct {
	Enabled    bool
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type authenticator struct {
	cfg    AuthConfig
	secret []byte
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

type callerParam struct {
	Caller string `json:"caller"`
}

// resolveCaller returns the address the request acts for.
func (s *Server) resolveCaller(r *http.Request, params json.RawMessage) ([20]byte, *RPCError) {
	var declared callerParam
	if len(params) > 0 {
		_ = json.Unmarshal(params, &declared)
	}
	declared.Caller = strings.TrimSpace(declared.Caller)

	if !s.auth.cfg.Enabled {
		if declared.Caller == "" {
			return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "caller required"}
		}
		addr, err := crypto.ParseAddress(declared.Caller)
		if err != nil {
			return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "invalid caller", Data: err.Error()}
		}
		return addr, nil
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	subject, err := s.auth.subject(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "invalid token", Data: err.Error()}
	}
	addr, err := crypto.ParseAddress(subject)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "token subject is not an address"}
	}
	if declared.Caller != "" {
		claimed, err := crypto.ParseAddress(declared.Caller)
		if err != nil || claimed != addr {
			return [20]byte{}, &RPCError{Code: codeUnauthorized, Message: "caller does not match token subject"}
		}
	}
	return addr, nil
}

func (a *authenticator) subject(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("missing bearer token")
	}
	if len(a.secret) == 0 {
		return "", errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", errors.New("token subject required")
	}
	return sub, nil
}
