package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu-catalog/pipeline"
	"gpu-catalog/publish"
	"gpu-catalog/validate"
)

type runCall struct {
	channel   string
	providers []string
}

func testServer(report *pipeline.Report, err error) (*Server, *runCall) {
	call := &runCall{}
	run := func(ctx context.Context, channel string, providerIDs []string) (*pipeline.Report, error) {
		call.channel = channel
		call.providers = providerIDs
		return report, err
	}
	return NewServer(run, nil, zerolog.Nop()), call
}

func postRun(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	assert := assert.New(t)
	s, _ := testServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), `"healthy"`)
}

func TestRunDispatchReturnsReport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	report := &pipeline.Report{
		RunID:   uuid.New(),
		Version: "20240115-1",
		Channel: "stable",
		Records: 8,
	}
	s, call := testServer(report, nil)

	rec := postRun(t, s, `{"channel": "stable", "providers": ["linode", "aws"]}`)
	require.Equal(http.StatusOK, rec.Code)

	assert.Equal("stable", call.channel)
	assert.Equal([]string{"linode", "aws"}, call.providers)

	var resp RunResponse
	require.NoError(json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(resp.Success)
	assert.Equal("20240115-1", resp.Report.Version)
	assert.Equal(8, resp.Report.Records)
}

func TestRunDispatchDefaultsChannel(t *testing.T) {
	assert := assert.New(t)

	s, call := testServer(&pipeline.Report{Version: "20240115-1"}, nil)

	rec := postRun(t, s, "")
	assert.Equal(http.StatusOK, rec.Code)
	assert.Equal("staging", call.channel)
	assert.Empty(call.providers)
}

func TestRunDispatchRejectsMalformedBody(t *testing.T) {
	assert := assert.New(t)

	s, _ := testServer(nil, nil)

	rec := postRun(t, s, `{"channel": `)
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Contains(rec.Body.String(), "bad_request")
}

func TestRunDispatchMapsErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantBody   []string
	}{
		{
			name:       "completeness",
			err:        &pipeline.CompletenessError{Failed: map[string]error{"seeweb": errors.New("connection reset")}},
			wantStatus: http.StatusBadGateway,
			wantCode:   "collection_incomplete",
			wantBody:   []string{"seeweb"},
		},
		{
			name: "validation",
			err: &validate.ValidationError{Violations: []validate.Violation{{
				Check:    validate.CheckRange,
				Provider: "crusoe",
				Record:   0,
				Message:  "negative price",
				Severity: validate.SeverityError,
			}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_failed",
			wantBody:   []string{"negative price", "crusoe"},
		},
		{
			name:       "archive",
			err:        &publish.ArchiveError{Channel: "stable", Version: "20240115-3", Err: errors.New("disk full")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "archive_failed",
			wantBody:   []string{"20240115-3"},
		},
		{
			name:       "alias",
			err:        &publish.AliasError{Channel: "stable", Version: "20240115-3", Err: errors.New("copy refused")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "alias_failed",
			wantBody:   []string{"20240115-3"},
		},
		{
			name:       "generic",
			err:        errors.New("staging dir vanished"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "run_failed",
			wantBody:   []string{"staging dir vanished"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			s, _ := testServer(nil, tc.err)

			rec := postRun(t, s, `{}`)
			assert.Equal(tc.wantStatus, rec.Code)

			body := rec.Body.String()
			assert.Contains(body, tc.wantCode)
			assert.Contains(body, `"success":false`)
			for _, want := range tc.wantBody {
				assert.Contains(body, want)
			}
		})
	}
}

func TestRunDispatchRequiresAPIKeyWhenConfigured(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.APIKey = "hunter2"
	run := func(ctx context.Context, channel string, providerIDs []string) (*pipeline.Report, error) {
		return &pipeline.Report{Version: "20240115-1"}, nil
	}
	s := NewServer(run, cfg, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(nil))
	req.Header.Set("X-API-Key", "hunter2")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(http.StatusOK, rec.Code, "health check must stay open")
}

func TestDefaultConfigServesStagingChannel(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	assert.Equal(8080, cfg.Port)
	assert.Equal("staging", cfg.DefaultChannel)
	assert.True(strings.HasPrefix(cfg.WriteTimeout.String(), "15m"))
}
