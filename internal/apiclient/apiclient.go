// Package apiclient is the front-office API gateway client (component C3):
// it fetches a submission's detail and patches back overall, per-set, and
// per-case judge results. Grounded on
// asfrgrtgd-tuis-oj-base/api/core/judge_client.go's HTTP-calling
// conventions (context-scoped timeouts, JSON request/response structs,
// explicit status-code handling) and
// original_source/treadmill/clients/api.py's method shape
// (get_submission/save_testcase_judge_result/save_testset_judge_result/
// save_judge_result), replacing the teacher's generated gRPC
// `problemclient` (its `api/gen/problem/v1` package is not present
// anywhere in the pack, so there is nothing real to carry forward). TTL
// caching of fetched submissions follows
// internal/judge/service/judge_service.go's getProblemMeta pattern.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"treadmill/internal/model"
	apperrors "treadmill/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Config configures the client, sourced from internal/config.Config.
type Config struct {
	Endpoint   string
	SecretKey  string
	Timeout    time.Duration
	CacheTTL   time.Duration // 0 disables submission-detail caching
	HTTPClient *http.Client  // optional; defaults to a client with Timeout
}

// Client is the front-office API gateway client. Safe for concurrent use:
// each in-flight request calls it independently (spec §5's "no shared
// mutable state between requests except... the container-engine client" —
// the API client is the other process-owned, concurrency-safe resource).
type Client struct {
	endpoint   string
	secretKey  string
	httpClient *http.Client
	cacheTTL   time.Duration

	cacheMu sync.Mutex
	cache   map[int64]submissionCacheEntry
}

type submissionCacheEntry struct {
	submission model.Submission
	expiresAt  time.Time
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
		cacheTTL:   cfg.CacheTTL,
		cache:      make(map[int64]submissionCacheEntry),
	}
}

// internalClaims mints the worker's bearer token per spec §6:
// {"internal":"treadmill","exp": far future}.
type internalClaims struct {
	Internal string `json:"internal"`
	jwt.RegisteredClaims
}

func (c *Client) mintToken() (string, error) {
	claims := internalClaims{
		Internal: "treadmill",
		RegisteredClaims: jwt.RegisteredClaims{
			// "generous expiry" per spec §5; minted fresh per process start
			// rather than genuinely infinite, since jwt/v5 requires a
			// concrete time for exp.
			ExpiresAt: jwt.NewNumericDate(time.Now().AddDate(100, 0, 0)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.secretKey))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.InternalApiError).WithMessage("failed to mint internal JWT")
	}
	return signed, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalApiError)
	}
	token, err := c.mintToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "JWT "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes req and maps any non-2xx response or transport failure to
// InternalApiError, marked retryable per spec §7's transient category.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InternalApiError).
			WithRetryable(true).
			WithMessagef("request to %s failed", req.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, apperrors.Newf(apperrors.InternalApiError, "api returned status %d for %s: %s",
			resp.StatusCode, req.URL.Path, string(text)).
			WithRetryable(true)
	}
	return resp, nil
}

// legacyMemLimitThreshold is the cutoff below which GetSubmissionDetail
// treats mem_limit_bytes as legacy kB rather than bytes, per the
// SUPPLEMENTED FEATURES note in SPEC_FULL.md ("legacy memory-limit
// normalization"): original_source's tasks/ops/api.py docstring says
// FetchSubmission "normalizes legacy memory limits".
const legacyMemLimitThreshold = 300000

// GetSubmissionDetail fetches GET /problems/{pid}/submissions/{sid}/detail
// (spec §6), normalizing a legacy kB memory limit (<= 300000) to bytes.
// Results are cached by submission id for cfg.CacheTTL.
func (c *Client) GetSubmissionDetail(ctx context.Context, problemID, submissionID int64) (model.Submission, error) {
	if c.cacheTTL > 0 {
		c.cacheMu.Lock()
		entry, ok := c.cache[submissionID]
		c.cacheMu.Unlock()
		if ok && time.Now().Before(entry.expiresAt) {
			return entry.submission, nil
		}
	}

	path := fmt.Sprintf("/problems/%d/submissions/%d/detail", problemID, submissionID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return model.Submission{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return model.Submission{}, err
	}
	defer resp.Body.Close()

	var subm model.Submission
	if err := json.NewDecoder(resp.Body).Decode(&subm); err != nil {
		return model.Submission{}, apperrors.Wrap(err, apperrors.InternalApiError).
			WithRetryable(true).
			WithMessage("malformed submission detail response")
	}

	if subm.Problem.Spec.MemLimitBytes > 0 && subm.Problem.Spec.MemLimitBytes <= legacyMemLimitThreshold {
		subm.Problem.Spec.MemLimitBytes *= 1024
	}

	if c.cacheTTL > 0 {
		c.cacheMu.Lock()
		c.cache[submissionID] = submissionCacheEntry{submission: subm, expiresAt: time.Now().Add(c.cacheTTL)}
		c.cacheMu.Unlock()
	}
	return subm, nil
}

func (c *Client) patch(ctx context.Context, path string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.InternalApiError)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PatchJudgeResult updates the overall result: PATCH /judge/{rid}/.
func (c *Client) PatchJudgeResult(ctx context.Context, requestID int64, result model.JudgeResult) error {
	return c.patch(ctx, fmt.Sprintf("/judge/%d/", requestID), result)
}

// PatchTestSetResult updates one test set's result:
// PATCH /judge/{rid}/testset/{sid}/.
func (c *Client) PatchTestSetResult(ctx context.Context, requestID int64, setID int, result model.TestSetJudgeResult) error {
	return c.patch(ctx, fmt.Sprintf("/judge/%d/testset/%d/", requestID, setID), result)
}

// PatchTestCaseResult updates one test case's result:
// PATCH /judge/{rid}/testset/{sid}/testcase/{cid}/.
func (c *Client) PatchTestCaseResult(ctx context.Context, requestID int64, setID, caseID int, result model.TestCaseJudgeResult) error {
	return c.patch(ctx, fmt.Sprintf("/judge/%d/testset/%d/testcase/%d/", requestID, setID, caseID), result)
}
