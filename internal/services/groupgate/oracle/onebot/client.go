// Package onebot checks group membership against a OneBot v11 HTTP API.
package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/groupgate/internal/platform/errors"
	"github.com/louisbranch/groupgate/internal/platform/requestctx"
	"github.com/louisbranch/groupgate/internal/platform/timeouts"
)

const (
	memberInfoPath = "/get_group_member_info"

	retcodeOK     = 0
	retcodeFailed = 100

	// msgMemberNotFound is the only failure that answers the question.
	msgMemberNotFound = "MEMBER_NOT_FOUND"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	GroupID int64
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client answers membership questions for one group.
type Client struct {
	endpoint string
	token    string
	groupID  int64
	client   *http.Client
}

type memberInfoRequest struct {
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
	NoCache bool  `json:"no_cache"`
}

type memberInfoResponse struct {
	Status  string `json:"status"`
	Retcode int    `json:"retcode"`
	Msg     string `json:"msg"`
	Wording string `json:"wording"`
	Message string `json:"message"`
}

// New creates a Client. BaseURL is required.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "onebot base url is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = timeouts.OracleRequest
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint: base + memberInfoPath,
		token:    strings.TrimSpace(cfg.Token),
		groupID:  cfg.GroupID,
		client:   client,
	}, nil
}

// HasMember reports whether accountID is currently in the group.
func (c *Client) HasMember(ctx context.Context, accountID int64) (bool, error) {
	body, err := json.Marshal(memberInfoRequest{GroupID: c.groupID, UserID: accountID, NoCache: true})
	if err != nil {
		return false, unavailable(accountID, "encode member info request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, unavailable(accountID, "build member info request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(requestctx.HeaderRequestID, requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, unavailable(accountID, "member info request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, unavailable(accountID, "member info request", fmt.Errorf("bot returned %s", resp.Status))
	}

	var result memberInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, unavailable(accountID, "decode member info response", err)
	}
	switch {
	case result.Retcode == retcodeOK && strings.EqualFold(result.Status, "ok"):
		return true, nil
	case result.Retcode == retcodeFailed && result.Msg == msgMemberNotFound:
		return false, nil
	default:
		return false, unavailable(accountID, "member info response",
			fmt.Errorf("retcode %d status %q msg %q: %s", result.Retcode, result.Status, result.Msg, result.detail()))
	}
}

func unavailable(accountID int64, message string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeOracleUnavailable, message,
		map[string]string{"account_id": strconv.FormatInt(accountID, 10), "oracle": "onebot"}, cause)
}

func (r memberInfoResponse) detail() string {
	if r.Wording != "" {
		return r.Wording
	}
	return r.Message
}
