package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/security"

	"github.com/go-resty/resty/v2"
)

// Trigger calls the job endpoints the way the platform scheduler does: a signed POST with the
// current cron secret and a fresh timestamp, plus the service-role key for the gateway.
type Trigger struct {
	client *resty.Client
	secret string
	now    func() time.Time
}

type triggerError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func NewTrigger(baseURL, cronSecret, serviceRoleKey string, timeout time.Duration) *Trigger {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if serviceRoleKey != "" {
		client.SetAuthToken(serviceRoleKey)
	}
	return &Trigger{client: client, secret: cronSecret, now: time.Now}
}

// Fire runs one job and returns its JSON summary.
func (t *Trigger) Fire(ctx context.Context, job string) (json.RawMessage, error) {
	logger.ExternalServiceCall("job-endpoint", "POST", "job", job)

	var failure triggerError
	req := t.client.R().
		SetContext(ctx).
		SetBody("{}").
		SetError(&failure)
	security.SignCronRequest(req.Header, t.secret, t.now())

	resp, err := req.Post("/" + job)
	if err != nil {
		logger.ExternalServiceResult("job-endpoint", "POST", err, "job", job)
		return nil, fmt.Errorf("trigger %s: %w", job, err)
	}
	if resp.IsError() {
		err = fmt.Errorf("trigger %s: status %d: %s", job, resp.StatusCode(), failure.describe())
		logger.ExternalServiceResult("job-endpoint", "POST", err, "job", job)
		return nil, err
	}

	logger.ExternalServiceResult("job-endpoint", "POST", nil, "job", job, "status", resp.StatusCode())
	return json.RawMessage(resp.Body()), nil
}

func (e triggerError) describe() string {
	if e.Reason != "" {
		return e.Error + " (" + e.Reason + ")"
	}
	if e.Error == "" {
		return "no error body"
	}
	return e.Error
}
