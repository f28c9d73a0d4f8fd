// Package canvas is the read-only REST boundary to the LMS.
// It holds no state beyond the HTTP client and its rate limiter.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	logx "gradewatch/pkg/logx"
)

type Config struct {
	BaseURL string
	Token   string

	Timeout    time.Duration // per-request; default 15s
	RatePerSec int           // client-side API request cap; default 5
	PerPage    int           // list page size; default 50
}

type Client struct {
	baseURL string
	token   string
	perPage int

	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("canvas base URL is empty")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("canvas API token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		perPage: perPage,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

// ListActiveCourses fetches the caller's active courses. A failure here is
// fatal to the run; there is no meaningful work without the course list.
func (c *Client) ListActiveCourses(ctx context.Context) ([]Course, error) {
	q := url.Values{}
	q.Set("enrollment_state", "active")
	q.Set("per_page", strconv.Itoa(c.perPage))

	var courses []Course
	status, err := c.getJSON(ctx, "/api/v1/courses", q, &courses)
	if err != nil {
		return nil, &FetchError{Op: "list courses", Err: err}
	}
	if status == http.StatusUnauthorized {
		return nil, ErrAuth
	}
	if status/100 != 2 {
		return nil, &FetchError{Op: "list courses", Status: status}
	}
	return courses, nil
}

// OverallGrade returns the course-level current score/grade. Absence
// (no enrollment, no grades, non-success response) is not an error.
func (c *Client) OverallGrade(ctx context.Context, courseID int64) (OverallGrade, bool, error) {
	q := url.Values{}
	q.Add("type[]", "StudentEnrollment")
	q.Add("state[]", "active")

	var enrollments []enrollment
	path := fmt.Sprintf("/api/v1/courses/%d/enrollments", courseID)
	status, err := c.getJSON(ctx, path, q, &enrollments)
	if err != nil {
		return OverallGrade{}, false, &FetchError{Op: "overall grade", CourseID: courseID, Err: err}
	}
	if status/100 != 2 || len(enrollments) == 0 {
		return OverallGrade{}, false, nil
	}
	g := enrollments[0].Grades
	if g.CurrentScore == nil && g.CurrentGrade == "" {
		return OverallGrade{}, false, nil
	}
	return OverallGrade{Score: g.CurrentScore, Grade: g.CurrentGrade}, true, nil
}

// GradedSubmissions fetches the caller's graded submissions for one course,
// with assignments and comment threads included.
func (c *Client) GradedSubmissions(ctx context.Context, courseID int64) ([]Submission, error) {
	q := url.Values{}
	q.Add("student_ids[]", "self")
	q.Set("workflow_state", "graded")
	q.Add("include[]", "assignment")
	q.Add("include[]", "submission_comments")
	q.Set("per_page", strconv.Itoa(c.perPage))

	var subs []Submission
	path := fmt.Sprintf("/api/v1/courses/%d/students/submissions", courseID)
	status, err := c.getJSON(ctx, path, q, &subs)
	if err != nil {
		return nil, &FetchError{Op: "graded submissions", CourseID: courseID, Err: err}
	}
	if status == http.StatusUnauthorized {
		return nil, ErrAuth
	}
	if status/100 != 2 {
		return nil, &FetchError{Op: "graded submissions", CourseID: courseID, Status: status}
	}
	return subs, nil
}

// Assignments fetches one course's assignments ordered by due date.
func (c *Client) Assignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("order_by", "due_at")

	var out []Assignment
	path := fmt.Sprintf("/api/v1/courses/%d/assignments", courseID)
	status, err := c.getJSON(ctx, path, q, &out)
	if err != nil {
		return nil, &FetchError{Op: "assignments", CourseID: courseID, Err: err}
	}
	if status/100 != 2 {
		return nil, &FetchError{Op: "assignments", CourseID: courseID, Status: status}
	}
	return out, nil
}

// getJSON performs one rate-limited GET. On non-2xx the body is drained and
// out is left untouched; the caller decides what the status means.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
