// Package remote reads the roster from an upstream student-list endpoint.
package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
)

var ErrUpstream = errors.New("roster endpoint error")

type rosterClient struct {
	url    string
	token  string
	client *rest.Client
}

// NewRosterClient returns a client for an endpoint answering GET with a JSON array of students
// (`_id, Unique_ID, First_Name, Father_Name, Grade, Class`).
func NewRosterClient(conf *core.Config) *rosterClient {
	timeout := conf.Roster.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &rosterClient{
		url:    conf.Roster.URL,
		token:  conf.Roster.Token,
		client: &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

// QueryAll fetches the whole roster. Entries are returned as sent, in order; no retries.
func (c *rosterClient) QueryAll(ctx context.Context) ([]student.Student, error) {
	req := rest.Request{
		Method:  rest.Get,
		BaseURL: c.url,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}

	res, err := c.send(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", c.url)
	}
	if res.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "GET %s: status %d", c.url, res.StatusCode)
	}

	var students []student.Student
	if err = json.Unmarshal([]byte(res.Body), &students); err != nil {
		return nil, errors.Wrap(err, "decoding roster")
	}
	if students == nil {
		students = []student.Student{}
	}
	return students, nil
}

func (c *rosterClient) send(ctx context.Context, req rest.Request) (*rest.Response, error) {
	httpReq, err := rest.BuildRequestObject(req)
	if err != nil {
		return nil, err
	}
	httpRes, err := c.client.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return rest.BuildResponse(httpRes)
}
