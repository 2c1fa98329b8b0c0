package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/filswan/go-swan-lib/logs"
	"github.com/gin-gonic/gin"

	"github.com/lagrangedao/go-computing-market/constants"
	"github.com/lagrangedao/go-computing-market/internal/market"
	"github.com/lagrangedao/go-computing-market/util"
	"github.com/lagrangedao/go-computing-market/wallet"
)

const senderKey = "market.sender"

type signedRequest struct {
	sender    string
	timestamp time.Time
	digest    []byte
}

// authenticate recovers the caller from the request signature. The signed message
// is the decimal unix timestamp, the method and path, then the raw body, and the
// timestamp must be within maxSkew of the server clock. A signer's message is
// accepted once, whatever encoding of the signature carries it.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := s.verifyRequest(c)
		if err != nil {
			logs.GetLogger().Warnf("rejected unsigned request %s %s, request_id: %s, error: %v",
				c.Request.Method, c.FullPath(), c.GetString(requestIDKey), err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, util.CreateErrorResponse(util.SignatureError, err.Error()))
			return
		}
		if err = s.market.MarkRequestSeen(s.now(), req.digest, req.timestamp.Add(s.maxSkew)); err != nil {
			if errors.Is(err, market.ErrReplayedRequest) {
				logs.GetLogger().Warnf("rejected replayed request %s %s from %s, request_id: %s",
					c.Request.Method, c.FullPath(), req.sender, c.GetString(requestIDKey))
			}
			writeError(c, err)
			return
		}
		c.Set(senderKey, req.sender)
		c.Next()
	}
}

func (s *Server) verifyRequest(c *gin.Context) (*signedRequest, error) {
	claimed := strings.TrimSpace(c.GetHeader(constants.HEADER_ADDRESS))
	timestamp := strings.TrimSpace(c.GetHeader(constants.HEADER_TIMESTAMP))
	signature := strings.TrimSpace(c.GetHeader(constants.HEADER_SIGNATURE))
	if claimed == "" || timestamp == "" || signature == "" {
		return nil, fmt.Errorf("missing %s, %s or %s header",
			constants.HEADER_ADDRESS, constants.HEADER_TIMESTAMP, constants.HEADER_SIGNATURE)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", timestamp)
	}
	skew := s.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.maxSkew {
		return nil, fmt.Errorf("timestamp %d outside the accepted window of %s", ts, s.maxSkew)
	}

	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	msg := wallet.RequestMessage(timestamp, c.Request.Method, c.Request.URL.Path, body)
	signer, err := wallet.RecoverHexSignature(msg, signature)
	if err != nil {
		return nil, fmt.Errorf("recovering signer: %w", err)
	}
	if !strings.EqualFold(signer, claimed) {
		return nil, fmt.Errorf("signature by %s does not match %s", signer, claimed)
	}
	return &signedRequest{
		sender:    signer,
		timestamp: time.Unix(ts, 0),
		digest:    crypto.Keccak256([]byte(strings.ToLower(signer)), msg),
	}, nil
}

func senderInfo(c *gin.Context) market.MsgInfo {
	return market.MsgInfo{Sender: c.GetString(senderKey)}
}
