package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dunamismax/normalflow/internal/domain"
)

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure is an application-level failure reported by the backend.
	OutcomeFailure
	// OutcomeTransportFailure means no usable answer came back.
	OutcomeTransportFailure
)

type Outcome struct {
	Kind   OutcomeKind
	Result domain.ProvisionResult
	Err    error
}

func (o Outcome) ErrorText() string {
	switch {
	case o.Kind == OutcomeFailure && o.Result.Error != "":
		return o.Result.Error
	case o.Err != nil:
		return o.Err.Error()
	default:
		return "unknown error"
	}
}

// TransportError wraps anything that kept the client from reading a
// provisioning result.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Client triggers provisioning on the backend. It never retries.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(baseURL, "/") + "/download-repo",
	}
}

func (c *Client) Provision(ctx context.Context) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, nil)
	if err != nil {
		return transportFailure("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportFailure("send request", err)
	}
	defer resp.Body.Close()

	const maxBodyBytes = 1 << 20
	var result domain.ProvisionResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&result); err != nil {
		return transportFailure("decode response", fmt.Errorf("status=%d: %w", resp.StatusCode, err))
	}

	if !result.Success {
		return Outcome{
			Kind:   OutcomeFailure,
			Result: result,
			Err:    errors.New(result.Error),
		}
	}
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

func transportFailure(op string, err error) Outcome {
	return Outcome{
		Kind: OutcomeTransportFailure,
		Err:  &TransportError{Op: op, Cause: err},
	}
}
