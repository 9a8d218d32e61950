package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"dhc_scraper/config"
	"dhc_scraper/models"
)

const solverPollInterval = 2 * time.Second

// SolverClient talks to a 2captcha-style solving API: submit the image
// to /in.php, poll /res.php until the worker answers.
type SolverClient struct {
	client       *resty.Client
	apiKey       string
	timeout      time.Duration
	pollInterval time.Duration
}

type solverResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

func NewSolverClient(cfg config.SolverConfig) *SolverClient {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(10 * time.Second)

	return &SolverClient{
		client:       client,
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		pollInterval: solverPollInterval,
	}
}

func (s *SolverClient) Solve(ctx context.Context, ch *models.CaptchaChallenge) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("solver api key not configured")
	}

	requestID, err := s.submit(ctx, ch.Image)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(s.timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}

		answer, ready, err := s.poll(ctx, requestID)
		if err != nil {
			return "", err
		}
		if ready {
			return answer, nil
		}
	}

	return "", fmt.Errorf("solver timed out after %s", s.timeout)
}

func (s *SolverClient) submit(ctx context.Context, image []byte) (string, error) {
	var result solverResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":    s.apiKey,
			"method": "base64",
			"body":   base64.StdEncoding.EncodeToString(image),
			"json":   "1",
		}).
		SetResult(&result).
		Post("/in.php")
	if err != nil {
		return "", fmt.Errorf("submit captcha: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("submit captcha: status %d", res.StatusCode())
	}
	if result.Status != 1 {
		return "", fmt.Errorf("solver rejected captcha: %s", result.Request)
	}
	return result.Request, nil
}

func (s *SolverClient) poll(ctx context.Context, requestID string) (string, bool, error) {
	var result solverResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    s.apiKey,
			"action": "get",
			"id":     requestID,
			"json":   "1",
		}).
		SetResult(&result).
		Get("/res.php")
	if err != nil {
		return "", false, fmt.Errorf("poll solver: %w", err)
	}
	if res.IsError() {
		return "", false, fmt.Errorf("poll solver: status %d", res.StatusCode())
	}
	if result.Status == 1 {
		return result.Request, true, nil
	}
	if result.Request == "CAPCHA_NOT_READY" {
		return "", false, nil
	}
	return "", false, fmt.Errorf("solver error: %s", result.Request)
}
