package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/gocommerce-catalog/internal/config"
	"github.com/abgdnv/gocommerce-catalog/internal/store"
	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	"github.com/abgdnv/gocommerce-catalog/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const productURL = "/api/v1/products"

func testConfig() *config.Config {
	var cfg config.Config
	cfg.Store.Kind = config.StoreMemory
	cfg.HTTPServer.MaxHeaderBytes = 1 << 20
	cfg.HTTPServer.Timeout.Read = time.Minute
	cfg.HTTPServer.Timeout.Write = time.Minute
	cfg.HTTPServer.Timeout.Idle = time.Minute
	cfg.HTTPServer.Timeout.ReadHeader = time.Minute
	cfg.GRPC.HealthInterval = time.Second
	cfg.Cache.Capacity = 100
	cfg.Cache.TTL = time.Hour
	cfg.Resilience.Retry.MaxAttempts = 3
	cfg.Resilience.Retry.InitialBackoff = time.Millisecond
	cfg.Resilience.CircuitBreaker.Enabled = true
	cfg.Resilience.CircuitBreaker.ConsecutiveFailures = 5
	cfg.Resilience.CircuitBreaker.ErrorRatePercent = 50
	cfg.Resilience.CircuitBreaker.MinRequests = 10
	cfg.Resilience.CircuitBreaker.OpenTimeout = time.Second
	return &cfg
}

// CatalogAppSuite drives the whole HTTP surface over an in-memory store.
type CatalogAppSuite struct {
	suite.Suite
	server     *httptest.Server
	httpClient *http.Client
	meter      *telemetry.MeterProvider
	logger     *slog.Logger
	ctx        context.Context
}

func (s *CatalogAppSuite) SetupSuite() {
	var err error
	s.ctx = context.Background()
	s.logger = slog.New(slog.DiscardHandler)

	s.meter, err = telemetry.NewMeterProvider(ServiceName)
	require.NoError(s.T(), err)
}

func (s *CatalogAppSuite) SetupTest() {
	cfg := testConfig()
	records, closeStore, err := SetupRecordStore(s.ctx, cfg, s.logger)
	require.NoError(s.T(), err)
	s.T().Cleanup(closeStore)

	deps, err := SetupDependencies(records, messaging.NoopPublisher{}, cfg, s.logger)
	require.NoError(s.T(), err)
	deps.Metrics = s.meter.Handler
	deps.MetricsPath = "/metrics"

	s.server = httptest.NewServer(SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
	s.T().Cleanup(s.server.Close)
}

func (s *CatalogAppSuite) TearDownSuite() {
	_ = s.meter.Shutdown(s.ctx)
}

func TestCatalogApp(t *testing.T) {
	suite.Run(t, new(CatalogAppSuite))
}

type productPayload struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Price   string    `json:"price"`
	Version int32     `json:"version"`
	Deleted bool      `json:"deleted"`
}

type pagePayload struct {
	Items         []productPayload `json:"items"`
	Page          int              `json:"page"`
	Size          int              `json:"size"`
	TotalElements int64            `json:"total_elements"`
	TotalPages    int              `json:"total_pages"`
}

func (s *CatalogAppSuite) do(method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, reader)
	require.NoError(s.T(), err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return resp.StatusCode, raw
}

func (s *CatalogAppSuite) create(name, price string) productPayload {
	status, raw := s.do(http.MethodPost, productURL, map[string]any{"name": name, "price": json.Number(price)})
	require.Equal(s.T(), http.StatusCreated, status, string(raw))
	var created productPayload
	require.NoError(s.T(), json.Unmarshal(raw, &created))
	return created
}

func (s *CatalogAppSuite) Test_ProductLifecycle() {
	// given
	created := s.create("Savings", "0.00")
	s.Equal(int32(0), created.Version)

	// when
	status, raw := s.do(http.MethodPut, productURL+"/"+created.ID.String(), map[string]any{"price": json.Number("2.50"), "version": 0})

	// then
	s.Require().Equal(http.StatusOK, status, string(raw))
	var updated productPayload
	s.Require().NoError(json.Unmarshal(raw, &updated))
	s.Equal(int32(1), updated.Version)
	s.Equal("2.5", updated.Price)

	status, raw = s.do(http.MethodPut, productURL+"/"+created.ID.String(), map[string]any{"price": json.Number("3"), "version": 0})
	s.Equal(http.StatusConflict, status, string(raw))

	status, _ = s.do(http.MethodDelete, productURL+"/"+created.ID.String(), nil)
	s.Equal(http.StatusNoContent, status)

	status, _ = s.do(http.MethodGet, productURL+"/"+created.ID.String(), nil)
	s.Equal(http.StatusNotFound, status)

	status, _ = s.do(http.MethodDelete, productURL+"/"+created.ID.String(), nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *CatalogAppSuite) Test_Listing() {
	// given
	s.create("Mortgage", "0")
	s.create("CD 1yr", "1000")
	deleted := s.create("Business Loan", "0")
	status, _ := s.do(http.MethodDelete, productURL+"/"+deleted.ID.String(), nil)
	s.Require().Equal(http.StatusNoContent, status)

	tests := []struct {
		name          string
		path          string
		expectedNames []string
		expectedTotal int64
	}{
		{
			name:          "active products sorted by name",
			path:          productURL + "?sortBy=name&direction=asc",
			expectedNames: []string{"CD 1yr", "Mortgage"},
			expectedTotal: 2,
		},
		{
			name:          "active products sorted by price descending",
			path:          productURL + "?sortBy=price&direction=desc&size=1",
			expectedNames: []string{"CD 1yr"},
			expectedTotal: 2,
		},
		{
			name:          "audit listing includes deleted products",
			path:          "/api/v1/admin/products?sortBy=name",
			expectedNames: []string{"Business Loan", "CD 1yr", "Mortgage"},
			expectedTotal: 3,
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			// when
			status, raw := s.do(http.MethodGet, tt.path, nil)

			// then
			s.Require().Equal(http.StatusOK, status, string(raw))
			var page pagePayload
			s.Require().NoError(json.Unmarshal(raw, &page))
			names := make([]string, 0, len(page.Items))
			for _, item := range page.Items {
				names = append(names, item.Name)
			}
			s.Equal(tt.expectedNames, names)
			s.Equal(tt.expectedTotal, page.TotalElements)
		})
	}
}

func (s *CatalogAppSuite) Test_InvalidRequests() {
	created := s.create("Savings", "0")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"negative price on create", http.MethodPost, productURL, map[string]any{"name": "Loan", "price": json.Number("-1")}},
		{"missing name", http.MethodPost, productURL, map[string]any{"price": json.Number("1")}},
		{"negative price on update", http.MethodPut, productURL + "/" + created.ID.String(), map[string]any{"price": json.Number("-0.01")}},
		{"malformed id", http.MethodGet, productURL + "/not-a-uuid", nil},
		{"unknown sort column", http.MethodGet, productURL + "?sortBy=color", nil},
		{"page size too large", http.MethodGet, productURL + "?size=1000", nil},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			status, raw := s.do(tt.method, tt.path, tt.body)
			s.Equal(http.StatusBadRequest, status, string(raw))
		})
	}
}

func (s *CatalogAppSuite) Test_CacheStatsAndMetrics() {
	// given
	created := s.create("Savings", "0")
	for range 2 {
		status, _ := s.do(http.MethodGet, productURL+"/"+created.ID.String(), nil)
		s.Require().Equal(http.StatusOK, status)
	}

	// when
	status, raw := s.do(http.MethodGet, "/api/v1/cache/stats", nil)

	// then
	s.Require().Equal(http.StatusOK, status)
	var stats map[string]any
	s.Require().NoError(json.Unmarshal(raw, &stats))
	s.NotEmpty(stats)

	status, raw = s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Contains(string(raw), "catalog_products_created")
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, tokenString string) (jwt.Token, error) {
	if tokenString != "good" {
		return nil, errors.New("invalid token")
	}
	return jwt.NewBuilder().Subject("admin").Build()
}

func Test_SetupHttpHandler_GuardsMutations(t *testing.T) {
	// given
	cfg := testConfig()
	deps, err := SetupDependencies(store.NewInMemory(), messaging.NoopPublisher{}, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	deps.Verifier = stubVerifier{}
	handler := SetupHttpHandler(deps)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
	}{
		{"create without token", http.MethodPost, productURL, "", http.StatusUnauthorized},
		{"create with bad token", http.MethodPost, productURL, "bad", http.StatusUnauthorized},
		{"create with token", http.MethodPost, productURL, "good", http.StatusCreated},
		{"audit listing without token", http.MethodGet, "/api/v1/admin/products", "", http.StatusUnauthorized},
		{"audit listing with token", http.MethodGet, "/api/v1/admin/products", "good", http.StatusOK},
		{"public listing without token", http.MethodGet, productURL, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.method == http.MethodPost {
				body = bytes.NewBufferString(`{"name":"Savings","price":1}`)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.token != "" {
				req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tt.token))
			}
			rr := httptest.NewRecorder()

			// when
			handler.ServeHTTP(rr, req)

			// then
			assert.Equal(t, tt.expectedStatus, rr.Code, rr.Body.String())
		})
	}
}

func Test_SetupPublisher_Disabled(t *testing.T) {
	// given
	cfg := testConfig()

	// when
	publisher, closePublisher, err := SetupPublisher(context.Background(), cfg, slog.New(slog.DiscardHandler))

	// then
	require.NoError(t, err)
	defer closePublisher()
	assert.IsType(t, messaging.NoopPublisher{}, publisher)
}

func Test_SetupGrpcServer_RegistersHealth(t *testing.T) {
	// given
	cfg := testConfig()
	deps, err := SetupDependencies(store.NewInMemory(), messaging.NoopPublisher{}, cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	// when
	grpcServer, healthServer := SetupGrpcServer(deps, cfg)

	// then
	require.NotNil(t, healthServer)
	info := grpcServer.GetServiceInfo()
	assert.Contains(t, info, "grpc.health.v1.Health")
}
