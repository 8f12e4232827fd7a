// Package session is the HTTP session core (C1): it owns the cookie jar and
// auth token for the enrollment portal, executes every enrollment API call
// through a single expiry-detection wrapper, and exposes the five operations
// the rest of the engine is built on (query, select, drop, listSelected,
// probeLogin). It is adapted from the enrollment client's own doRequest
// wrapper and expiry classifier, generalized from "retry by re-logging in
// inline" (the teacher's approach) to "return a tagged expired outcome and
// let the recovery coordinator own re-login" (spec.md §9's replacement for
// exception-driven control flow).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/xkmonitor/core/internal/boolparse"
	"github.com/xkmonitor/core/internal/htmlsignal"
	"github.com/xkmonitor/core/internal/instrumentation"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/tlsclient"
	"github.com/xkmonitor/core/internal/xkerrors"
)

const (
	// BaseURL is the enrollment application's mount point.
	BaseURL = "https://portal.example.edu/xsxkapp/sys/xsxkapp"

	indexEndpoint       = "/*default/index.do"
	vcodeTokenEndpoint  = "/student/4/vcode.do"
	captchaImageEndpoint = "/student/vcode/image.do"
	loginEndpoint       = "/student/check/login.do"
	selectEndpoint      = "/elective/volunteer.do"
	dropEndpoint        = "/elective/deleteVolunteer.do"
	heldSectionsEndpoint = "/elective/courseResult.do"

	recommendedCourseEndpoint = "/elective/recommendedCourse.do"
	programCourseEndpoint     = "/elective/programCourse.do"
	publicCourseEndpoint      = "/elective/publicCourse.do"
)

// expiryKeywords are matched case-insensitively against a response's msg
// field, per spec.md §4.1. Localized (Chinese) variants are included since
// the portal mixes English and Chinese error strings.
var expiryKeywords = []string{
	"login", "token", "expired", "invalid", "unauthorized", "session", "not logged in",
	"登录", "登陆", "超时", "失效", "未登录",
}

// Outcome tags every session-aware call with an explicit, non-exception
// classification (spec.md §9's "replacement for exception-driven control
// flow").
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeSessionExpired
	OutcomeNetworkError
)

// CatalogEndpoint selects the remote endpoint by course type per spec.md §6.
func CatalogEndpoint(t models.CourseType) string {
	switch t {
	case models.CourseTypeRecommended:
		return recommendedCourseEndpoint
	case models.CourseTypeMajorProgram:
		return programCourseEndpoint
	case models.CourseTypePublicElective:
		return publicCourseEndpoint
	case models.CourseTypePhysicalEducation:
		return programCourseEndpoint
	default:
		return publicCourseEndpoint
	}
}

// Client is the HTTP session core. All fields beyond httpClient are mutated
// only via Update, under mu, matching spec.md's R1: reads take an atomic
// snapshot of (token, cookies) and never mutate out from under a caller.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	session models.Session
}

// NewClient builds a session client with the browser-impersonating,
// non-redirect-following transport C1 requires.
func NewClient() (*Client, error) {
	httpClient, err := tlsclient.New(tlsclient.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("session: failed to build http client: %w", err)
	}
	return &Client{httpClient: httpClient}, nil
}

// Snapshot returns a copy of the current session value.
func (c *Client) Snapshot() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// Update atomically publishes a new session value, e.g. after a successful
// recovery login (C3). Token and cookies are always replaced together (I2).
func (c *Client) Update(s models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// Now returns the current time adjusted by the session's recorded server-time
// offset (spec.md §4.2's server-time-offset probe), falling back to wall
// clock when no offset has been recorded.
func (c *Client) Now() time.Time {
	return c.Snapshot().Now()
}

type rawResponse struct {
	statusCode int
	history302 bool
	body       []byte
}

// do executes one enrollment HTTP call and classifies its outcome without
// attempting any recovery itself — that is C3's job.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, authenticated bool) (*rawResponse, Outcome, error) {
	trace := instrumentation.StartRequest(ctx, method, endpoint)
	var statusCode int
	var callErr error
	defer func() { trace.End(statusCode, callErr) }()

	req, err := http.NewRequestWithContext(ctx, method, BaseURL+endpoint, body)
	if err != nil {
		callErr = err
		return nil, OutcomeNetworkError, xkerrors.Wrap(xkerrors.KindParseFailure, err)
	}

	if authenticated {
		snap := c.Snapshot()
		req.Header.Set("token", snap.Token)
		req.Header.Set("Referer", fmt.Sprintf("%s/*default/grablessons.do?token=%s", BaseURL, snap.Token))
		for name, value := range snap.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", BaseURL)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		callErr = err
		klog.V(1).Infof("session: request failed: %s %s: %s", method, endpoint, err)
		return nil, OutcomeNetworkError, xkerrors.Wrap(xkerrors.KindTransientNetwork, err)
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		klog.V(1).Infof("session: %s %s -> %d (redirect, treated as expiry)", method, endpoint, resp.StatusCode)
		return nil, OutcomeSessionExpired, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		callErr = err
		return nil, OutcomeNetworkError, xkerrors.Wrap(xkerrors.KindTransientNetwork, err)
	}

	return &rawResponse{statusCode: resp.StatusCode, body: raw}, OutcomeOK, nil
}

type envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// classifyEnvelope applies spec.md §4.1's expiry-keyword and code==-1 rules
// on top of whatever do() already decided from the HTTP status line. A body
// that fails to decode as JSON falls back to the HTML defensive signal (C16).
func classifyEnvelope(raw []byte) Outcome {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if htmlsignal.DetectBytes(raw) == htmlsignal.SignalLoginPage {
			return OutcomeSessionExpired
		}
		return OutcomeOK
	}
	if env.Code == "-1" {
		return OutcomeSessionExpired
	}
	if containsExpiryKeyword(env.Msg) && env.Code != "1" {
		return OutcomeSessionExpired
	}
	return OutcomeOK
}

func containsExpiryKeyword(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range expiryKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// QueryResult is C4's output for one catalog call.
type QueryResult struct {
	Outcome Outcome
	Records []models.TeachingClassRecord
}

// Query calls the course-list endpoint for the given course type and query
// content, parsing the nested dataList/tcList shape (spec.md §4.4).
func (c *Client) Query(ctx context.Context, courseType models.CourseType, queryContent string) (QueryResult, error) {
	snap := c.Snapshot()
	body := buildQuerySetting(snap, courseType, queryContent)

	resp, outcome, err := c.do(ctx, http.MethodPost, CatalogEndpoint(courseType),
		strings.NewReader("querySetting="+formEscape(string(body))), true)
	if err != nil {
		return QueryResult{Outcome: OutcomeNetworkError}, err
	}
	if outcome != OutcomeOK {
		return QueryResult{Outcome: outcome}, nil
	}

	if classifyEnvelope(resp.body) == OutcomeSessionExpired {
		return QueryResult{Outcome: OutcomeSessionExpired}, nil
	}

	records, err := parseCatalog(resp.body, courseType)
	if err != nil {
		return QueryResult{Outcome: OutcomeOK}, xkerrors.Wrap(xkerrors.KindParseFailure, err)
	}
	return QueryResult{Outcome: OutcomeOK, Records: records}, nil
}

type querySetting struct {
	StudentCode     string `json:"studentCode"`
	CampusCode      string `json:"campusCode"`
	ElectiveBatchCode string `json:"electiveBatchCode"`
	IsMajor         int    `json:"isMajor"`
	TeachingClassType string `json:"teachingClassType"`
	CheckConflict   int    `json:"checkConflict"`
	CheckCapacity   int    `json:"checkCapacity"`
	QueryContent    string `json:"queryContent"`
	PageSize        int    `json:"pageSize"`
	PageNumber      int    `json:"pageNumber"`
}

func buildQuerySetting(s models.Session, courseType models.CourseType, queryContent string) []byte {
	qs := querySetting{
		StudentCode:       s.StudentCode,
		CampusCode:        s.CampusCode,
		ElectiveBatchCode: s.BatchCode,
		IsMajor:           1,
		TeachingClassType: courseType.Code(),
		CheckConflict:     2,
		CheckCapacity:     2,
		QueryContent:      queryContent,
		PageSize:          500,
		PageNumber:        0,
	}
	raw, _ := json.Marshal(qs)
	return raw
}

func formEscape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-' || c == '_' || c == '.' || c == '~':
			sb.WriteByte(c)
		case c == ' ':
			sb.WriteByte('+')
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

type catalogEnvelope struct {
	Code     string            `json:"code"`
	Msg      string            `json:"msg"`
	DataList []json.RawMessage `json:"dataList"`
}

type tcNode struct {
	TeachingClassID string          `json:"teachingClassId"`
	CourseNumber    string          `json:"courseNumber"`
	CourseName      string          `json:"courseName"`
	TeacherName     string          `json:"teacherName"`
	TimeAndPlace    string          `json:"timeAndPlace"`
	Capacity        json.RawMessage `json:"capacity"`
	Enrolled        json.RawMessage `json:"enrolled"`
	IsFull          json.RawMessage `json:"isFull"`
	IsConflict      json.RawMessage `json:"isConflict"`
	IsChosen        json.RawMessage `json:"isChosen"`
	ConflictDesc    string          `json:"conflictDesc"`
	TCList          []tcNode        `json:"tcList"`
}

func parseCatalog(raw []byte, courseType models.CourseType) ([]models.TeachingClassRecord, error) {
	var env catalogEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("session: failed to parse catalog response: %w", err)
	}

	var records []models.TeachingClassRecord
	for _, item := range env.DataList {
		var node tcNode
		if err := json.Unmarshal(item, &node); err != nil {
			continue
		}
		if len(node.TCList) > 0 {
			for _, sub := range node.TCList {
				records = append(records, toRecord(sub, courseType))
			}
			continue
		}
		records = append(records, toRecord(node, courseType))
	}
	return records, nil
}

func toRecord(n tcNode, courseType models.CourseType) models.TeachingClassRecord {
	capacity, _ := decodeInt(n.Capacity)
	enrolled, hadEnrolled := decodeInt(n.Enrolled)
	teacherName := n.TeacherName
	if courseType == models.CourseTypePhysicalEducation && teacherName != "" {
		teacherName = teacherName + " (sport project)"
	}
	remain := 0
	if hadEnrolled {
		remain = capacity - enrolled
	}
	return models.TeachingClassRecord{
		ID: models.CourseID{
			TeachingClassID: n.TeachingClassID,
			CourseNumber:    n.CourseNumber,
			CourseType:      courseType,
		},
		CourseName:   n.CourseName,
		TeacherName:  teacherName,
		TimeAndPlace: n.TimeAndPlace,
		Capacity:     capacity,
		Enrolled:     enrolled,
		Remain:       remain,
		IsFull:       decodeBool(n.IsFull),
		IsConflict:   decodeBool(n.IsConflict),
		IsChosen:     decodeBool(n.IsChosen),
		ConflictDesc: n.ConflictDesc,
	}
}

func decodeBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return boolparse.Bool(v)
}

func decodeInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return boolparse.Int(v)
}

// SelectResult is C6's classified outcome of a select call.
type SelectResult struct {
	Outcome      Outcome
	Success      bool
	NeedRollback bool
	Full         bool
	Msg          string
}

// Select submits the select request for one teaching class, per spec.md
// §4.1/§4.6's classifier: the course-type field is forwarded verbatim since
// the wishlist entry's type is already numeric — no double translation.
func (c *Client) Select(ctx context.Context, tcID string, courseType models.CourseType) (SelectResult, error) {
	snap := c.Snapshot()
	payload := map[string]interface{}{
		"operationType":   1,
		"teachingClassId": tcID,
		"studentCode":     snap.StudentCode,
		"electiveBatchCode": snap.BatchCode,
		"teachingClassType": int(courseType),
	}
	raw, _ := json.Marshal(payload)

	resp, outcome, err := c.do(ctx, http.MethodPost, selectEndpoint,
		strings.NewReader("addParam="+formEscape(string(raw))), true)
	if err != nil {
		return SelectResult{Outcome: OutcomeNetworkError}, err
	}
	if outcome != OutcomeOK {
		return SelectResult{Outcome: outcome}, nil
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return SelectResult{Outcome: OutcomeOK, Msg: string(resp.body)}, nil
	}
	if classifyEnvelope(resp.body) == OutcomeSessionExpired {
		return SelectResult{Outcome: OutcomeSessionExpired}, nil
	}

	return classifySelect(env), nil
}

func classifySelect(env envelope) SelectResult {
	lower := strings.ToLower(env.Msg)
	result := SelectResult{Outcome: OutcomeOK, Msg: env.Msg}

	if env.Code == "1" || strings.Contains(lower, "already selected") || strings.Contains(lower, "duplicate") || strings.Contains(env.Msg, "重复") {
		result.Success = true
		return result
	}
	if strings.Contains(lower, "conflict") || strings.Contains(env.Msg, "冲突") {
		result.NeedRollback = true
		return result
	}
	if strings.Contains(lower, "capacity") || strings.Contains(lower, "full") || strings.Contains(lower, "number") || strings.Contains(env.Msg, "人数") {
		result.Full = true
		return result
	}
	return result
}

// DropResult is the outcome of a drop call.
type DropResult struct {
	Outcome Outcome
	Success bool
	Msg     string
}

// Drop calls the drop endpoint for one held teaching class.
func (c *Client) Drop(ctx context.Context, tcID string) (DropResult, error) {
	snap := c.Snapshot()
	payload := map[string]interface{}{
		"operationType":   2,
		"teachingClassId": tcID,
		"studentCode":     snap.StudentCode,
		"electiveBatchCode": snap.BatchCode,
	}
	raw, _ := json.Marshal(payload)
	ts := c.Now().UnixMilli()

	endpoint := fmt.Sprintf("%s?timestamp=%d&deleteParam=%s", dropEndpoint, ts, formEscape(string(raw)))
	resp, outcome, err := c.do(ctx, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return DropResult{Outcome: OutcomeNetworkError}, err
	}
	if outcome != OutcomeOK {
		return DropResult{Outcome: outcome}, nil
	}
	if classifyEnvelope(resp.body) == OutcomeSessionExpired {
		return DropResult{Outcome: OutcomeSessionExpired}, nil
	}

	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return DropResult{Outcome: OutcomeOK}, nil
	}
	return DropResult{Outcome: OutcomeOK, Success: env.Code == "1", Msg: env.Msg}, nil
}

// ListSelectedResult is the outcome of listing currently-held sections.
type ListSelectedResult struct {
	Outcome Outcome
	Views   []models.SelectedCourseView
}

// ListSelected retrieves the student's currently-held teaching classes,
// used by C7 to localize a conflicting section and to verify grabs.
func (c *Client) ListSelected(ctx context.Context) (ListSelectedResult, error) {
	snap := c.Snapshot()
	ts := c.Now().UnixMilli()
	endpoint := fmt.Sprintf("%s?timestamp=%d&studentCode=%s&electiveBatchCode=%s",
		heldSectionsEndpoint, ts, snap.StudentCode, snap.BatchCode)

	resp, outcome, err := c.do(ctx, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return ListSelectedResult{Outcome: OutcomeNetworkError}, err
	}
	if outcome != OutcomeOK {
		return ListSelectedResult{Outcome: outcome}, nil
	}
	if classifyEnvelope(resp.body) == OutcomeSessionExpired {
		return ListSelectedResult{Outcome: OutcomeSessionExpired}, nil
	}

	var env struct {
		Code     string `json:"code"`
		DataList []struct {
			TeachingClassID string `json:"teachingClassId"`
			CourseNumber    string `json:"courseNumber"`
			CourseName      string `json:"courseName"`
			TimeAndPlace    string `json:"timeAndPlace"`
			TeacherName     string `json:"teacherName"`
			TeachingClassType int  `json:"teachingClassType"`
		} `json:"dataList"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return ListSelectedResult{Outcome: OutcomeOK}, xkerrors.Wrap(xkerrors.KindParseFailure, err)
	}

	views := make([]models.SelectedCourseView, 0, len(env.DataList))
	for _, d := range env.DataList {
		views = append(views, models.SelectedCourseView{
			ID: models.CourseID{
				TeachingClassID: d.TeachingClassID,
				CourseNumber:    d.CourseNumber,
				CourseType:      models.CourseType(d.TeachingClassType),
			},
			CourseName:   d.CourseName,
			TimeAndPlace: d.TimeAndPlace,
			TeacherName:  d.TeacherName,
			CourseType:   models.CourseType(d.TeachingClassType),
		})
	}
	return ListSelectedResult{Outcome: OutcomeOK, Views: views}, nil
}

// ProbeLogin checks whether the current session is still alive, per spec.md
// §4.1's probeLogin operation, by issuing a lightweight authenticated GET.
func (c *Client) ProbeLogin(ctx context.Context) (Outcome, error) {
	_, outcome, err := c.do(ctx, http.MethodGet, heldSectionsEndpoint, nil, true)
	if err != nil {
		return OutcomeNetworkError, err
	}
	return outcome, nil
}

// FetchIndex retrieves the portal's index page, establishing the initial
// session cookie (spec.md §4.2 step 1). Returns the raw body for the caller
// to parse a login form from if needed.
func (c *Client) FetchIndex(ctx context.Context) ([]byte, error) {
	resp, outcome, err := c.do(ctx, http.MethodGet, indexEndpoint, nil, false)
	if err != nil {
		return nil, err
	}
	if outcome != OutcomeOK {
		return nil, xkerrors.New(xkerrors.KindSessionExpired, "session: unexpected redirect fetching index page")
	}
	return resp.body, nil
}

// ProbeServerTime performs a HEAD on the index page and returns the round-
// trip-midpoint-adjusted server time offset (spec.md §4.2's server-time-offset
// probe). A zero duration and false are returned if the probe fails; callers
// must treat that as "skip silently".
func (c *Client) ProbeServerTime(ctx context.Context) (time.Duration, bool) {
	sendTime := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, BaseURL+indexEndpoint, nil)
	if err != nil {
		return 0, false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	recvTime := time.Now()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, false
	}
	serverTime, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, false
	}

	midpoint := sendTime.Add(recvTime.Sub(sendTime) / 2)
	return serverTime.Sub(midpoint), true
}

// FetchVToken retrieves a vtoken for a captcha challenge (spec.md §4.2 step 2).
func (c *Client) FetchVToken(ctx context.Context) (string, error) {
	ts := c.Now().UnixMilli()
	resp, outcome, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s?timestamp=%d", vcodeTokenEndpoint, ts), nil, false)
	if err != nil {
		return "", err
	}
	if outcome != OutcomeOK {
		return "", xkerrors.New(xkerrors.KindSessionExpired, "session: unexpected outcome fetching vtoken")
	}

	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return "", xkerrors.Wrap(xkerrors.KindParseFailure, err)
	}
	return env.Data.Token, nil
}

// FetchCaptchaImage downloads the captcha image keyed by vtoken (spec.md
// §4.2 step 3).
func (c *Client) FetchCaptchaImage(ctx context.Context, vtoken string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s?vtoken=%s", captchaImageEndpoint, vtoken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	snap := c.Snapshot()
	for name, value := range snap.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xkerrors.Wrap(xkerrors.KindTransientNetwork, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// LoginResult is C2's login-call outcome.
type LoginResult struct {
	Success bool
	Token   string
	Code    string
	Name    string
	// CampusCode/BatchCode are the portal's active-semester identifiers,
	// returned alongside the student profile at login and required on every
	// subsequent query/select/drop/held-sections call (spec.md §6).
	CampusCode string
	BatchCode  string
	Msg        string
}

// SubmitLogin performs spec.md §4.2 step 5's login GET. Every interpolated
// field is form-escaped: loginPwd in particular can contain &, %, +, # or
// spaces, any of which would otherwise corrupt the query string.
func (c *Client) SubmitLogin(ctx context.Context, studentID, password, captcha, vtoken string) (LoginResult, error) {
	ts := c.Now().UnixMilli()
	endpoint := fmt.Sprintf("%s?timestrap=%d&loginName=%s&loginPwd=%s&verifyCode=%s&vtoken=%s",
		loginEndpoint, ts, formEscape(studentID), formEscape(password), formEscape(captcha), formEscape(vtoken))

	resp, outcome, err := c.do(ctx, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return LoginResult{}, err
	}
	if outcome != OutcomeOK {
		return LoginResult{}, xkerrors.New(xkerrors.KindSessionExpired, "session: unexpected redirect during login")
	}

	var env struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Token             string `json:"token"`
			Number            string `json:"number"`
			Name              string `json:"name"`
			CampusCode        string `json:"campusCode"`
			ElectiveBatchCode string `json:"electiveBatchCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.body, &env); err != nil {
		return LoginResult{}, xkerrors.Wrap(xkerrors.KindParseFailure, err)
	}

	return LoginResult{
		Success:    env.Code == "1",
		Token:      env.Data.Token,
		Code:       env.Data.Number,
		Name:       env.Data.Name,
		CampusCode: env.Data.CampusCode,
		BatchCode:  env.Data.ElectiveBatchCode,
		Msg:        env.Msg,
	}, nil
}

// CaptureCookies extracts the jar's current cookies for the portal's host,
// so a login flow can snapshot them into a models.Session.
func (c *Client) CaptureCookies() map[string]string {
	u, _ := http.NewRequest(http.MethodGet, BaseURL, nil)
	cookies := c.httpClient.Jar.Cookies(u.URL)
	out := make(map[string]string, len(cookies))
	for _, ck := range cookies {
		out[ck.Name] = ck.Value
	}
	return out
}
