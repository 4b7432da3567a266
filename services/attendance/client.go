package attendancesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/attendance"
)

const (
	validatePath = "/v1/attendance/qr/validate"
	checkInPath  = "/v1/attendance/qr/check-in"
	checkOutPath = "/v1/attendance/qr/check-out"
	statusPath   = "/v1/attendance/my-children/status"
	settingsPath = "/v1/school/settings"
)

// APIError is a non-2xx answer of the attendance API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("attendance API: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("attendance API: %d %s", e.StatusCode, e.Message)
}

// ServerMessage is the message the server attached to the failure, meant for the guardian.
func (e *APIError) ServerMessage() string { return e.Message }

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client talks to the attendance API on behalf of one authenticated guardian.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	rest    *rest.Client
	logger  core.Logger
}

var _ attendance.Client = (*Client)(nil)

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(conf.API.BaseURL, "/"),
		token:   conf.API.Token,
		timeout: conf.API.Timeout,
		rest:    &rest.Client{HTTPClient: &http.Client{Timeout: conf.API.Timeout}},
		logger:  logger,
	}
}

func (c *Client) ValidateCode(ctx context.Context, code string) (attendance.CodeValidation, error) {
	var val attendance.CodeValidation
	body := map[string]string{"code": code}
	if err := c.do(ctx, rest.Post, validatePath, body, &val); err != nil {
		return attendance.CodeValidation{}, errors.Wrap(err, "validating code")
	}
	return val, nil
}

func (c *Client) CheckIn(ctx context.Context, req attendance.CheckRequest) (attendance.BatchResult, error) {
	return c.submit(ctx, checkInPath, req)
}

func (c *Client) CheckOut(ctx context.Context, req attendance.CheckRequest) (attendance.BatchResult, error) {
	return c.submit(ctx, checkOutPath, req)
}

// submit posts a batch. A refusal that still carries a batch body is a result, not an error.
func (c *Client) submit(ctx context.Context, path string, req attendance.CheckRequest) (attendance.BatchResult, error) {
	var res attendance.BatchResult
	err := c.do(ctx, rest.Post, path, req, &res)
	if err == nil {
		return res, nil
	}
	var apiErr *refusal
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		var batch attendance.BatchResult
		if json.Unmarshal([]byte(apiErr.body), &batch) == nil && batch.Message != "" {
			batch.Success = false
			return batch, nil
		}
	}
	return attendance.BatchResult{}, errors.Wrap(err, "submitting "+path)
}

func (c *Client) MyChildrenStatus(ctx context.Context) ([]attendance.ChildStatus, error) {
	var children []attendance.ChildStatus
	if err := c.do(ctx, rest.Get, statusPath, nil, &children); err != nil {
		return nil, errors.Wrap(err, "fetching children status")
	}
	if children == nil {
		children = make([]attendance.ChildStatus, 0)
	}
	return children, nil
}

func (c *Client) SchoolSettings(ctx context.Context) (attendance.SchoolSettings, error) {
	var settings attendance.SchoolSettings
	if err := c.do(ctx, rest.Get, settingsPath, nil, &settings); err != nil {
		return attendance.SchoolSettings{}, errors.Wrap(err, "fetching school settings")
	}
	return settings, nil
}

// refusal keeps the raw body of a non-2xx answer next to its decoded APIError.
type refusal struct {
	*APIError
	body string
}

func (r *refusal) Unwrap() error { return r.APIError }

func (c *Client) do(ctx context.Context, method rest.Method, path string, in, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{
			"Accept":        "application/json",
			"Authorization": "Bearer " + c.token,
		},
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, string(method)+" "+path)
	}
	c.logger.Debug("attendance API call", map[string]interface{}{
		"method":   string(method),
		"path":     path,
		"status":   res.StatusCode,
		"duration": time.Since(start).String(),
	})

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var eb errorBody
		if json.Unmarshal([]byte(res.Body), &eb) == nil {
			apiErr.Message = eb.Error
			if apiErr.Message == "" {
				apiErr.Message = eb.Message
			}
		}
		return &refusal{APIError: apiErr, body: res.Body}
	}
	if out == nil || res.Body == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(res.Body), out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}
