package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/pkg/config"
	appErrors "github.com/noah-isme/sma-roster/pkg/errors"
	"github.com/noah-isme/sma-roster/pkg/middleware/requestid"
)

const maxErrorBody = 2048

// GatewayError carries diagnostics for a failed backend call.
type GatewayError struct {
	Operation string
	Status    int
	Body      string
	Err       error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Err != nil && e.Status > 0:
		return fmt.Sprintf("%s: status %d: %v", e.Operation, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("%s: status %d: %s", e.Operation, e.Status, e.Body)
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayUnavailable reports whether err signals that the backend could not serve the call.
func IsGatewayUnavailable(err error) bool {
	return errors.Is(err, appErrors.ErrGatewayUnavailable)
}

// GatewayObserver receives per-call timing for metrics.
type GatewayObserver interface {
	ObserveGatewayRequest(operation, outcome string, duration time.Duration)
}

// RemoteRepository talks to the external roster backend over HTTP. It owns no state.
type RemoteRepository struct {
	baseURL  string
	client   *http.Client
	cfg      config.GatewayConfig
	observer GatewayObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewRemoteRepository constructs a gateway client. An empty base URL yields a client whose
// every call reports the gateway as unavailable.
func NewRemoteRepository(cfg config.GatewayConfig, client *http.Client, observer GatewayObserver, logger *zap.Logger) *RemoteRepository {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteRepository{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:   client,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

// Configured reports whether a backend URL was provided.
func (r *RemoteRepository) Configured() bool {
	return r != nil && r.baseURL != ""
}

// ListClasses fetches GET /turmas.
func (r *RemoteRepository) ListClasses(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	if err := r.do(ctx, "list_classes", http.MethodGet, "/turmas", nil, nil, &classes); err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []models.Class{}
	}
	return classes, nil
}

// ListStudents fetches GET /alunos, omitting unset filter parameters.
func (r *RemoteRepository) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := url.Values{}
	if name := strings.TrimSpace(filter.Name); name != "" {
		query.Set("nome", name)
	}
	if filter.ClassID != nil {
		query.Set("turma_id", strconv.FormatInt(*filter.ClassID, 10))
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	var students []models.Student
	if err := r.do(ctx, "list_students", http.MethodGet, "/alunos", query, nil, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, nil
}

// CreateStudent posts a new student and returns the backend's record.
func (r *RemoteRepository) CreateStudent(ctx context.Context, payload models.StudentPayload) (*models.Student, error) {
	var created models.Student
	if err := r.do(ctx, "create_student", http.MethodPost, "/alunos", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateStudent replaces the student identified by id.
func (r *RemoteRepository) UpdateStudent(ctx context.Context, id int64, payload models.StudentPayload) (*models.Student, error) {
	var updated models.Student
	path := "/alunos/" + strconv.FormatInt(id, 10)
	if err := r.do(ctx, "update_student", http.MethodPut, path, nil, payload, &updated); err != nil {
		return nil, err
	}
	if updated.ID == 0 {
		updated.ID = id
	}
	return &updated, nil
}

// DeleteStudent removes the student identified by id.
func (r *RemoteRepository) DeleteStudent(ctx context.Context, id int64) error {
	path := "/alunos/" + strconv.FormatInt(id, 10)
	return r.do(ctx, "delete_student", http.MethodDelete, path, nil, nil, nil)
}

// Enroll posts a matrícula. The backend may answer with the updated student; when it does,
// the record is returned, otherwise the result is nil.
func (r *RemoteRepository) Enroll(ctx context.Context, enrollment models.Enrollment) (*models.Student, error) {
	var raw json.RawMessage
	if err := r.do(ctx, "enroll", http.MethodPost, "/matriculas", nil, enrollment, &raw); err != nil {
		return nil, err
	}
	var student models.Student
	if len(raw) == 0 || json.Unmarshal(raw, &student) != nil || student.ID == 0 {
		return nil, nil
	}
	return &student, nil
}

// CreateClass posts a new turma.
func (r *RemoteRepository) CreateClass(ctx context.Context, payload models.ClassPayload) (*models.Class, error) {
	var created models.Class
	if err := r.do(ctx, "create_class", http.MethodPost, "/turmas", nil, payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Ping checks GET /health.
func (r *RemoteRepository) Ping(ctx context.Context) error {
	return r.do(ctx, "ping", http.MethodGet, "/health", nil, nil, nil)
}

func (r *RemoteRepository) do(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) error {
	start := time.Now()
	err := r.roundTrip(ctx, operation, method, path, query, body, out)
	outcome := "success"
	if err != nil {
		outcome = "unavailable"
		r.logger.Debug("gateway call failed",
			zap.String("operation", operation),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
	}
	if r.observer != nil {
		r.observer.ObserveGatewayRequest(operation, outcome, time.Since(start))
	}
	return err
}

func (r *RemoteRepository) roundTrip(ctx context.Context, operation, method, path string, query url.Values, body, out interface{}) error {
	if !r.Configured() {
		return unavailable(&GatewayError{Operation: operation, Err: errors.New("gateway base url not configured")})
	}

	target := r.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return unavailable(&GatewayError{Operation: operation, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set(requestid.Header, reqID)
	if token, err := r.bearerToken(); err != nil {
		return unavailable(&GatewayError{Operation: operation, Err: err})
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return unavailable(&GatewayError{Operation: operation, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return unavailable(&GatewayError{Operation: operation, Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(&GatewayError{Operation: operation, Status: resp.StatusCode, Err: err})
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return unavailable(&GatewayError{Operation: operation, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)})
	}
	return nil
}

func (r *RemoteRepository) bearerToken() (string, error) {
	if r.cfg.TokenSecret == "" {
		return "", nil
	}
	now := r.now()
	ttl := r.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	claims := jwt.RegisteredClaims{
		Issuer:    r.cfg.TokenIssuer,
		Subject:   "roster-ui",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(r.cfg.TokenSecret))
	if err != nil {
		return "", fmt.Errorf("sign gateway token: %w", err)
	}
	return signed, nil
}

func unavailable(cause *GatewayError) error {
	return appErrors.Wrap(cause, appErrors.ErrGatewayUnavailable.Code, appErrors.ErrGatewayUnavailable.Status, appErrors.ErrGatewayUnavailable.Message)
}
