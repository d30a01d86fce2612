// Package portalclient talks to the portal REST API on behalf of one signed-in user.
package portalclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/purelifecenter/portal/core"
	"github.com/purelifecenter/portal/core/training"
)

// Client is a training.Remote backed by the portal API.
type Client struct {
	baseURL string
	token   string
	rest    *rest.Client
}

var _ training.Remote = (*Client)(nil)

// New returns a client for the API rooted at baseURL (e.g. "https://portal.example.com/v1")
// authenticating with the JWT token.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		rest:    &rest.Client{HTTPClient: httpClient},
	}
}

func (c *Client) GetLesson(ctx context.Context, lessonID string) (training.Lesson, error) {
	var l training.Lesson
	err := c.do(ctx, rest.Get, "/training/lessons/"+lessonID, nil, &l)
	return l, errors.Wrap(err, "fetching lesson")
}

func (c *Client) GetProgress(ctx context.Context, lessonID string) (training.Progress, error) {
	var p training.Progress
	err := c.do(ctx, rest.Get, "/training/lessons/"+lessonID+"/progress", nil, &p)
	return p, errors.Wrap(err, "fetching lesson progress")
}

func (c *Client) SaveProgress(ctx context.Context, lessonID string, sp training.SaveProgress) (training.Progress, error) {
	var p training.Progress
	err := c.do(ctx, rest.Put, "/training/lessons/"+lessonID+"/progress", sp, &p)
	return p, errors.Wrap(err, "saving lesson progress")
}

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
			return errors.Wrap(err, "marshaling request")
		}
		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	hreq, err := rest.BuildRequestObject(req)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	hresp, err := c.rest.MakeRequest(hreq.WithContext(ctx))
	if err != nil {
		return err
	}
	resp, err := rest.BuildResponse(hresp)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.Body == "" {
			return nil
		}
		return errors.Wrap(json.Unmarshal([]byte(resp.Body), out), "decoding response")
	}
	return responseError(resp)
}

// responseError maps API error responses back onto core errors so callers can tell
// a rejected request from a failed one.
func responseError(resp *rest.Response) error {
	msg := errorMessage(resp.Body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		var fields map[string]string
		if json.Unmarshal([]byte(resp.Body), &fields) == nil {
			if m, ok := fields["error"]; ok && len(fields) == 1 {
				return core.NewValidationError(errors.New(m))
			}
			vErr := &core.ValidationError{Err: errors.New(msg)}
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				vErr.Fields = append(vErr.Fields, core.FieldError{Field: k, Error: fields[k]})
			}
			return vErr
		}
		return core.NewValidationError(errors.New(msg))
	case http.StatusNotFound:
		return core.NewNotFoundError(strings.TrimSuffix(msg, " not found"))
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(core.ErrForbidden, msg)
	}
	return errors.Errorf("portal API: %d %s", resp.StatusCode, msg)
}

func errorMessage(body string) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(body), &e) == nil && e.Error != "" {
		return e.Error
	}
	return ""
}
