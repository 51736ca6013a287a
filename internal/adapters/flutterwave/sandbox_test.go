package flutterwave

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kevin07696/flutterwave-gateway/pkg/resilience"
	"github.com/kevin07696/flutterwave-gateway/test/mocks"
)

var testEncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))

// sandbox is an in-process stand-in for the v4 developer sandbox. Charge
// outcomes follow X-Scenario-Key the way the real sandbox does.
type sandbox struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	charges     map[string]*sandboxCharge
	customers   []Customer
	requests    []sandboxRequest
	tokenHits   int
	failCharges int  // number of upcoming POST /charges answered with 500
	otpAfterPIN bool // answering a PIN challenge raises an OTP challenge
}

type sandboxCharge struct {
	charge   Charge
	scenario string
}

type sandboxRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func newSandbox(t *testing.T) *sandbox {
	t.Helper()
	s := &sandbox{t: t, charges: make(map[string]*sandboxCharge)}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *sandbox) config() Config {
	cfg := DefaultConfig(EnvironmentSandbox)
	cfg.BaseURL = s.server.URL
	cfg.TokenURL = s.server.URL + "/token"
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "client-secret"
	cfg.EncryptionKey = testEncryptionKey
	cfg.RetryBackoff = &resilience.FixedBackoff{Delay: 0}
	return cfg
}

func (s *sandbox) client(t *testing.T) *Client {
	t.Helper()
	c, _, err := NewClientWithDefaults(s.config(), nil, testLogger())
	require.NoError(t, err)
	return c
}

func (s *sandbox) recorded(method, path string) []sandboxRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sandboxRequest
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// requestCount returns how many requests reached the sandbox
func (s *sandbox) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *sandbox) handle(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	_, _ = body.ReadFrom(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, sandboxRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body.Bytes()})

	if r.URL.Path == "/token" {
		s.tokenHits++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": fmt.Sprintf("token-%d", s.tokenHits),
			"token_type":   "Bearer",
			"expires_in":   600,
		})
		return
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer token-") {
		writeFailure(w, http.StatusUnauthorized, "10401", "UNAUTHORIZATION", "Invalid token")
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/customers":
		var found []Customer
		for _, c := range s.customers {
			if c.Email == r.URL.Query().Get("email") {
				found = append(found, c)
			}
		}
		writeSuccess(w, http.StatusOK, found)

	case r.Method == http.MethodPost && r.URL.Path == "/customers":
		var req CustomerRequest
		_ = json.Unmarshal(body.Bytes(), &req)
		c := Customer{ID: fmt.Sprintf("cus_%d", len(s.customers)+1), Email: req.Email}
		s.customers = append(s.customers, c)
		writeSuccess(w, http.StatusCreated, c)

	case r.Method == http.MethodPost && r.URL.Path == "/payment-methods":
		var req paymentMethodRequest
		_ = json.Unmarshal(body.Bytes(), &req)
		if req.Type == PaymentMethodCard && (req.Card == nil || req.Card.Nonce == "" || req.Card.EncryptedCardNumber == "") {
			writeFailure(w, http.StatusBadRequest, "10400", "REQUEST_NOT_VALID", "card must be encrypted")
			return
		}
		writeSuccess(w, http.StatusCreated, PaymentMethod{ID: "pmd_1", Type: req.Type, CustomerID: req.CustomerID})

	case r.Method == http.MethodPost && r.URL.Path == "/charges":
		if s.failCharges > 0 {
			s.failCharges--
			writeFailure(w, http.StatusInternalServerError, "10500", "INTERNAL_SERVER_ERROR", "temporary failure")
			return
		}
		var req chargePayload
		_ = json.Unmarshal(body.Bytes(), &req)
		id := fmt.Sprintf("chg_%d", len(s.charges)+1)
		sc := &sandboxCharge{scenario: r.Header.Get(HeaderScenarioKey)}
		sc.charge = Charge{ID: id, Reference: req.Reference, Currency: req.Currency, Amount: req.Amount, Status: ChargeStatusPending}
		switch {
		case strings.HasPrefix(sc.scenario, "scenario:auth_pin"):
			sc.charge.NextAction = &NextAction{Type: NextActionRequiresPIN}
		case strings.HasPrefix(sc.scenario, "scenario:auth_avs"):
			sc.charge.NextAction = &NextAction{Type: NextActionRequiresAdditionalFields}
		case strings.HasPrefix(sc.scenario, "scenario:auth_3ds"):
			sc.charge.NextAction = &NextAction{Type: NextActionRedirectURL, RedirectURL: &struct {
				URL string `json:"url"`
			}{URL: "https://sandbox.example/3ds"}}
		case sc.scenario == "scenario:default":
			sc.charge.NextAction = &NextAction{Type: NextActionPaymentInstruction, PaymentInstruction: &struct {
				Note string `json:"note"`
			}{Note: "Approve the prompt on your phone"}}
		default:
			sc.charge.Status = ChargeStatusSucceeded
		}
		s.charges[id] = sc
		writeSuccess(w, http.StatusCreated, sc.charge)

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/charges/"):
		sc, ok := s.charges[strings.TrimPrefix(r.URL.Path, "/charges/")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "10404", "RESOURCE_NOT_FOUND", "charge not found")
			return
		}
		answered := sc.charge.NextAction
		sc.charge.NextAction = nil
		if s.otpAfterPIN && answered != nil && answered.Type == NextActionRequiresPIN {
			sc.charge.NextAction = &NextAction{Type: NextActionRequiresOTP}
			writeSuccess(w, http.StatusOK, sc.charge)
			return
		}
		if i := strings.Index(sc.scenario, "&issuer:"); i >= 0 && sc.scenario[i+len("&issuer:"):] != "approved" {
			sc.charge.Status = ChargeStatusFailed
			sc.charge.ProcessorResponse = &ProcessorResponse{Type: sc.scenario[i+len("&issuer:"):], Code: "55"}
		} else {
			sc.charge.Status = ChargeStatusSucceeded
		}
		writeSuccess(w, http.StatusOK, sc.charge)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/charges/"):
		sc, ok := s.charges[strings.TrimPrefix(r.URL.Path, "/charges/")]
		if !ok {
			writeFailure(w, http.StatusNotFound, "10404", "RESOURCE_NOT_FOUND", "charge not found")
			return
		}
		writeSuccess(w, http.StatusOK, sc.charge)

	case r.Method == http.MethodPost && r.URL.Path == "/transfers/recipients":
		writeSuccess(w, http.StatusCreated, TransferRecipient{ID: "rcb_1", Type: "bank_ugx"})

	case r.Method == http.MethodPost && r.URL.Path == "/transfers":
		var req transferPayload
		_ = json.Unmarshal(body.Bytes(), &req)
		status := "NEW"
		if sc := r.Header.Get(HeaderScenarioKey); sc != "" && sc != "scenario:successful" {
			status = "FAILED"
		}
		writeSuccess(w, http.StatusCreated, Transfer{ID: "trf_1", Reference: req.Reference, Status: status})

	case r.Method == http.MethodGet && r.URL.Path == "/transfers/trf_1":
		writeSuccess(w, http.StatusOK, Transfer{ID: "trf_1", Reference: "payout001", Status: "SUCCESSFUL"})

	case r.Method == http.MethodPost && r.URL.Path == "/refunds":
		var req refundPayload
		_ = json.Unmarshal(body.Bytes(), &req)
		writeSuccess(w, http.StatusCreated, Refund{ID: "ref_1", ChargeID: req.ChargeID, Amount: json.Number(req.Amount), Status: "succeeded"})

	default:
		writeFailure(w, http.StatusNotFound, "10404", "RESOURCE_NOT_FOUND", "no route")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"status": "success", "message": "ok", "data": data})
}

func writeFailure(w http.ResponseWriter, status int, code, typ, message string) {
	writeJSON(w, status, map[string]any{
		"status": "failed",
		"error":  map[string]any{"type": typ, "code": code, "message": message},
	})
}

func testLogger() *mocks.MockLogger {
	return mocks.NewMockLogger()
}
