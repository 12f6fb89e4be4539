package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "wallet-settlement-core/internal/adapter/http/handler"
	redisStorage "wallet-settlement-core/internal/adapter/storage/redis"
	"wallet-settlement-core/internal/core/domain"
	"wallet-settlement-core/internal/service"
	"wallet-settlement-core/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monitorSecret = "monitor-test-secret"

// testApp builds a full application stack on in-memory repos and miniredis.
// This exercises the real HTTP layer, middleware, handlers, services, and
// Redis stores end-to-end.

type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	accounts *inMemoryAccountRepo
	txns     *inMemoryTransactionRepo
	subs     *inMemorySubmissionRepo
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	// Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)

	// Core services with real implementations
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	// In-memory repos
	accountRepo := newInMemoryAccountRepo()
	txRepo := newInMemoryTransactionRepo()
	subRepo := newInMemorySubmissionRepo()
	auditRepo := newInMemoryAuditRepo()
	transactor := newInMemoryTransactor()

	// Business services
	log := logger.New("debug", false)
	gate := service.NewGateService(accountRepo, log)
	ledgerSvc := service.NewLedgerService(accountRepo, txRepo, idempotencyCache, transactor, service.NopPublisher{}, log)
	submissionSvc := service.NewSubmissionService(subRepo, accountRepo, auditRepo, gate, ledgerSvc, transactor, service.NopPublisher{}, log)
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:       authSvc,
		LedgerSvc:     ledgerSvc,
		SubmissionSvc: submissionSvc,
		Gate:          gate,
		TokenSvc:      tokenSvc,
		SigSvc:        sigSvc,
		NonceStore:    nonceStore,
		MonitorSecret: monitorSecret,
		MonitorTTL:    time.Minute,
		Logger:        log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:   server,
		redis:    mr,
		accounts: accountRepo,
		txns:     txRepo,
		subs:     subRepo,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// approveKYC flips the account's verification state directly in storage, as if
// an earlier KYC review already concluded.
func (a *testApp) approveKYC(t *testing.T, email string) {
	t.Helper()
	a.accounts.mu.Lock()
	defer a.accounts.mu.Unlock()
	for _, acc := range a.accounts.accounts {
		if acc.Email == email {
			acc.KYCStatus = domain.KYCStatusApproved
			return
		}
	}
	t.Fatalf("account %s not found", email)
}

// promoteToAdmin grants admin authority directly in storage. The gate re-reads
// the account on every call, so this takes effect without a new token.
func (a *testApp) promoteToAdmin(t *testing.T, email string) {
	t.Helper()
	a.accounts.mu.Lock()
	defer a.accounts.mu.Unlock()
	for _, acc := range a.accounts.accounts {
		if acc.Email == email {
			acc.Role = domain.RoleAdmin
			acc.KYCStatus = domain.KYCStatusApproved
			return
		}
	}
	t.Fatalf("account %s not found", email)
}

func (a *testApp) suspend(t *testing.T, email string) {
	t.Helper()
	a.accounts.mu.Lock()
	defer a.accounts.mu.Unlock()
	for _, acc := range a.accounts.accounts {
		if acc.Email == email {
			acc.AccountStatus = domain.AccountStatusSuspended
			return
		}
	}
	t.Fatalf("account %s not found", email)
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	// Register
	regBody, _ := json.Marshal(map[string]string{
		"email":    "user1@example.com",
		"password": "StrongPass123!",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var regResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&regResp))
	data := regResp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["account_id"])
	assert.Equal(t, "NOT_SUBMITTED", data["kyc_status"])
	assert.Equal(t, "ACTIVE", data["account_status"])

	// Login
	loginBody, _ := json.Marshal(map[string]string{
		"email":    "user1@example.com",
		"password": "StrongPass123!",
	})
	resp2, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	var loginResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&loginResp))
	loginData := loginResp["data"].(map[string]interface{})
	assert.NotEmpty(t, loginData["token"])
}

func TestIntegration_LoginWrongCredentials(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	loginBody, _ := json.Marshal(map[string]string{
		"email":    "nobody@example.com",
		"password": "wrongpass",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	regBody, _ := json.Marshal(map[string]string{
		"email":    "dup@example.com",
		"password": "StrongPass123!",
	})

	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same email again
	resp2, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestIntegration_JWT_Unauthorized(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	// No Authorization header
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_BalanceStartsAtZero(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "fresh@example.com")

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["balance"])
}

func TestIntegration_MonitorDeposit_EndToEnd(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "depositor@example.com")
	accountID := accountIDFor(t, app, "depositor@example.com")

	// Signed webhook from the deposit monitor
	resp := postMonitorDeposit(t, app, accountID, 75000, "chain-tx-001", "nonce-dep-1")
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "deposit response: %s", string(bodyBytes))

	var depResp map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &depResp))
	depData := depResp["data"].(map[string]interface{})
	assert.Equal(t, "DEPOSIT", depData["type"])
	assert.Equal(t, "COMPLETED", depData["status"])

	// Balance reflects the credit
	assert.Equal(t, int64(75000), balanceOf(t, app, token))

	// Redelivery of the same deposit (fresh nonce, same reference) converges
	// on the original transaction, balance unchanged
	resp2 := postMonitorDeposit(t, app, accountID, 75000, "chain-tx-001", "nonce-dep-2")
	defer resp2.Body.Close()
	require.Equal(t, http.StatusCreated, resp2.StatusCode)

	var depResp2 map[string]interface{}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&depResp2))
	depData2 := depResp2["data"].(map[string]interface{})
	assert.Equal(t, depData["id"], depData2["id"])

	assert.Equal(t, int64(75000), balanceOf(t, app, token))
}

func TestIntegration_Monitor_ReplayedNonce(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	registerAndLogin(t, app, "replay@example.com")
	accountID := accountIDFor(t, app, "replay@example.com")

	resp := postMonitorDeposit(t, app, accountID, 1000, "chain-tx-r1", "nonce-same")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp2 := postMonitorDeposit(t, app, accountID, 1000, "chain-tx-r2", "nonce-same")
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestIntegration_Withdraw_GatedOnKYC(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "spender@example.com")
	accountID := accountIDFor(t, app, "spender@example.com")

	// Fund the wallet
	resp := postMonitorDeposit(t, app, accountID, 100000, "chain-tx-fund", "nonce-fund")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Withdrawal blocked until identity is verified
	wdBody, _ := json.Marshal(map[string]interface{}{
		"amount":    int64(40000),
		"reference": "wd-001",
	})
	respWd := postJSON(t, app, token, "/api/v1/wallet/withdrawals", wdBody)
	defer respWd.Body.Close()
	assert.Equal(t, http.StatusForbidden, respWd.StatusCode)

	var denied map[string]interface{}
	require.NoError(t, json.NewDecoder(respWd.Body).Decode(&denied))
	assert.Equal(t, "GATE_001", denied["error_code"])
	assert.Equal(t, "kyc_required", denied["reason"])

	// Verify the account, same request now succeeds
	app.approveKYC(t, "spender@example.com")

	respWd2 := postJSON(t, app, token, "/api/v1/wallet/withdrawals", wdBody)
	defer respWd2.Body.Close()
	assert.Equal(t, http.StatusCreated, respWd2.StatusCode)

	assert.Equal(t, int64(60000), balanceOf(t, app, token))
}

func TestIntegration_Withdraw_NoOverdraft(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "overdrawn@example.com")
	accountID := accountIDFor(t, app, "overdrawn@example.com")
	app.approveKYC(t, "overdrawn@example.com")

	resp := postMonitorDeposit(t, app, accountID, 10000, "chain-tx-od", "nonce-od")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	wdBody, _ := json.Marshal(map[string]interface{}{
		"amount":    int64(10001),
		"reference": "wd-over",
	})
	respWd := postJSON(t, app, token, "/api/v1/wallet/withdrawals", wdBody)
	defer respWd.Body.Close()
	assert.Equal(t, http.StatusPaymentRequired, respWd.StatusCode)

	// Balance untouched by the refused debit
	assert.Equal(t, int64(10000), balanceOf(t, app, token))
}

func TestIntegration_GiftCard_SubmitAndApprove(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userToken := registerAndLogin(t, app, "seller@example.com")
	app.approveKYC(t, "seller@example.com")

	adminToken := registerAndLogin(t, app, "admin@example.com")
	app.promoteToAdmin(t, "admin@example.com")

	// Submit a gift card claim: 10 units at 650 minor each
	subBody, _ := json.Marshal(map[string]interface{}{
		"kind":          "GIFT_CARD",
		"claimed_units": int64(10),
		"rate_minor":    int64(650),
		"evidence_ref":  "upload/card.jpg",
	})
	respSub := postJSON(t, app, userToken, "/api/v1/submissions", subBody)
	defer respSub.Body.Close()
	require.Equal(t, http.StatusCreated, respSub.StatusCode)

	var subResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respSub.Body).Decode(&subResp))
	subData := subResp["data"].(map[string]interface{})
	subID := subData["id"].(string)
	assert.Equal(t, "PENDING", subData["status"])
	assert.Equal(t, float64(6500), subData["credited_amount"])

	// No credit before adjudication
	assert.Equal(t, int64(0), balanceOf(t, app, userToken))

	// Approve
	respApprove := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+subID+"/approve", nil)
	defer respApprove.Body.Close()
	approveBytes, _ := io.ReadAll(respApprove.Body)
	require.Equal(t, http.StatusOK, respApprove.StatusCode, "approve response: %s", string(approveBytes))

	var approveResp map[string]interface{}
	require.NoError(t, json.Unmarshal(approveBytes, &approveResp))
	approveData := approveResp["data"].(map[string]interface{})
	assert.Equal(t, "APPROVED", approveData["status"])
	assert.NotEmpty(t, approveData["linked_transaction_id"])

	assert.Equal(t, int64(6500), balanceOf(t, app, userToken))

	// Duplicate approve converges without double-crediting
	respApprove2 := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+subID+"/approve", nil)
	respApprove2.Body.Close()
	require.Equal(t, http.StatusOK, respApprove2.StatusCode)

	assert.Equal(t, int64(6500), balanceOf(t, app, userToken))
}

func TestIntegration_GiftCard_RejectAfterInterruptedApproval(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userToken := registerAndLogin(t, app, "seller2@example.com")
	app.approveKYC(t, "seller2@example.com")
	account, err := app.accounts.GetByEmail(context.Background(), "seller2@example.com")
	require.NoError(t, err)
	accountID := account.ID

	adminToken := registerAndLogin(t, app, "admin2@example.com")
	app.promoteToAdmin(t, "admin2@example.com")

	subBody, _ := json.Marshal(map[string]interface{}{
		"kind":          "GIFT_CARD",
		"claimed_units": int64(10),
		"rate_minor":    int64(650),
		"evidence_ref":  "upload/card.jpg",
	})
	respSub := postJSON(t, app, userToken, "/api/v1/submissions", subBody)
	defer respSub.Body.Close()
	require.Equal(t, http.StatusCreated, respSub.StatusCode)

	var subResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respSub.Body).Decode(&subResp))
	subID := subResp["data"].(map[string]interface{})["id"].(string)

	// Stage the aftermath of an approval that settled the credit and then
	// died before flipping the submission: completed ledger entry under the
	// submission-derived reference, balance applied, claim still pending.
	sub, lerr := app.subs.LatestByKind(context.Background(), accountID, domain.SubmissionKindGiftCard)
	require.NoError(t, lerr)
	require.Equal(t, domain.SubmissionStatusPending, sub.Status)

	now := time.Now().UTC()
	credit := &domain.Transaction{
		ID:        sub.ID,
		AccountID: accountID,
		Amount:    6500,
		Type:      domain.TransactionTypeSale,
		Status:    domain.TransactionStatusCompleted,
		Reference: sub.LedgerReference(),
		CreatedAt: now,
		SettledAt: &now,
	}
	app.txns.mu.Lock()
	app.txns.transactions[credit.ID] = credit
	app.txns.mu.Unlock()
	app.accounts.mu.Lock()
	app.accounts.accounts[accountID].WalletBalance += 6500
	app.accounts.mu.Unlock()

	// The settled credit means the money moved: rejection must refuse.
	rejectBody, _ := json.Marshal(map[string]interface{}{"notes": "card already redeemed"})
	respReject := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+subID+"/reject", rejectBody)
	respReject.Body.Close()
	require.Equal(t, http.StatusConflict, respReject.StatusCode)
	assert.Equal(t, int64(6500), balanceOf(t, app, userToken))

	// Re-running approve heals the interruption: the ledger replays
	// idempotently and the flip completes against the existing credit.
	respApprove := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+subID+"/approve", nil)
	defer respApprove.Body.Close()
	require.Equal(t, http.StatusOK, respApprove.StatusCode)

	var approveResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respApprove.Body).Decode(&approveResp))
	assert.Equal(t, "APPROVED", approveResp["data"].(map[string]interface{})["status"])
	assert.Equal(t, int64(6500), balanceOf(t, app, userToken))
}

func TestIntegration_Approve_RequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userToken := registerAndLogin(t, app, "notadmin@example.com")
	app.approveKYC(t, "notadmin@example.com")

	subBody, _ := json.Marshal(map[string]interface{}{
		"kind":          "GIFT_CARD",
		"claimed_units": int64(5),
		"rate_minor":    int64(100),
		"evidence_ref":  "upload/card.jpg",
	})
	respSub := postJSON(t, app, userToken, "/api/v1/submissions", subBody)
	defer respSub.Body.Close()
	require.Equal(t, http.StatusCreated, respSub.StatusCode)

	var subResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respSub.Body).Decode(&subResp))
	subID := subResp["data"].(map[string]interface{})["id"].(string)

	// Account holders cannot adjudicate, not even their own claims
	respApprove := postJSON(t, app, userToken, "/api/v1/admin/submissions/"+subID+"/approve", nil)
	defer respApprove.Body.Close()
	assert.Equal(t, http.StatusForbidden, respApprove.StatusCode)

	assert.Equal(t, int64(0), balanceOf(t, app, userToken))
}

func TestIntegration_KYC_RejectAndResubmit(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userToken := registerAndLogin(t, app, "applicant@example.com")
	adminToken := registerAndLogin(t, app, "reviewer@example.com")
	app.promoteToAdmin(t, "reviewer@example.com")

	// Submit KYC
	subBody, _ := json.Marshal(map[string]interface{}{
		"kind":          "KYC",
		"evidence_ref":  "upload/passport.jpg",
		"document_type": "passport",
	})
	respSub := postJSON(t, app, userToken, "/api/v1/submissions", subBody)
	defer respSub.Body.Close()
	require.Equal(t, http.StatusCreated, respSub.StatusCode)

	var subResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respSub.Body).Decode(&subResp))
	subID := subResp["data"].(map[string]interface{})["id"].(string)

	// A second KYC claim while one is pending is refused
	respDup := postJSON(t, app, userToken, "/api/v1/submissions", subBody)
	respDup.Body.Close()
	assert.Equal(t, http.StatusConflict, respDup.StatusCode)

	// Reject
	rejBody, _ := json.Marshal(map[string]string{"notes": "document unreadable"})
	respRej := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+subID+"/reject", rejBody)
	respRej.Body.Close()
	require.Equal(t, http.StatusOK, respRej.StatusCode)

	// Resubmit creates a new pending record
	resubBody, _ := json.Marshal(map[string]string{
		"evidence_ref":  "upload/passport-2.jpg",
		"document_type": "passport",
	})
	respResub := postJSON(t, app, userToken, "/api/v1/submissions/kyc/resubmit", resubBody)
	defer respResub.Body.Close()
	require.Equal(t, http.StatusCreated, respResub.StatusCode)

	var resubResp map[string]interface{}
	require.NoError(t, json.NewDecoder(respResub.Body).Decode(&resubResp))
	resubData := resubResp["data"].(map[string]interface{})
	newSubID := resubData["id"].(string)
	assert.NotEqual(t, subID, newSubID)
	assert.Equal(t, "PENDING", resubData["status"])

	// Approve the resubmission, account becomes verified
	respApprove := postJSON(t, app, adminToken, "/api/v1/admin/submissions/"+newSubID+"/approve", nil)
	respApprove.Body.Close()
	require.Equal(t, http.StatusOK, respApprove.StatusCode)

	acc, err := app.accounts.GetByEmail(context.Background(), "applicant@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusApproved, acc.KYCStatus)
}

func TestIntegration_Suspended_CannotSell(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "suspended@example.com")
	app.approveKYC(t, "suspended@example.com")
	app.suspend(t, "suspended@example.com")

	subBody, _ := json.Marshal(map[string]interface{}{
		"kind":          "GIFT_CARD",
		"claimed_units": int64(1),
		"rate_minor":    int64(100),
		"evidence_ref":  "upload/card.jpg",
	})
	resp := postJSON(t, app, token, "/api/v1/submissions", subBody)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "account_suspended", body["reason"])
}

func TestIntegration_Reconcile(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	registerAndLogin(t, app, "audited@example.com")
	accountID := accountIDFor(t, app, "audited@example.com")

	adminToken := registerAndLogin(t, app, "auditor@example.com")
	app.promoteToAdmin(t, "auditor@example.com")

	resp := postMonitorDeposit(t, app, accountID, 5000, "chain-tx-rec", "nonce-rec")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/admin/reconcile/"+accountID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	respRec, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer respRec.Body.Close()

	assert.Equal(t, http.StatusOK, respRec.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(respRec.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["consistent"])
	assert.Equal(t, float64(5000), data["stored_balance"])
	assert.Equal(t, float64(5000), data["completed_sum"])
}

// --- Helpers ---

func registerAndLogin(t *testing.T, app *testApp, email string) string {
	t.Helper()
	regBody, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "StrongPass123!",
	})
	resp, err := http.Post(app.server.URL+"/api/v1/auth/register", "application/json", bytes.NewReader(regBody))
	require.NoError(t, err)
	resp.Body.Close()

	loginBody, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "StrongPass123!",
	})
	resp2, err := http.Post(app.server.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(loginBody))
	require.NoError(t, err)
	defer resp2.Body.Close()

	bodyBytes, _ := io.ReadAll(resp2.Body)
	var loginResp map[string]interface{}
	require.NoError(t, json.Unmarshal(bodyBytes, &loginResp))
	data := loginResp["data"].(map[string]interface{})
	return data["token"].(string)
}

func accountIDFor(t *testing.T, app *testApp, email string) string {
	t.Helper()
	acc, err := app.accounts.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, acc)
	return acc.ID.String()
}

func balanceOf(t *testing.T, app *testApp, token string) int64 {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, app.server.URL+"/api/v1/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	data := body["data"].(map[string]interface{})
	return int64(data["balance"].(float64))
}

func postJSON(t *testing.T, app *testApp, token, path string, body []byte) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, app.server.URL+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func postMonitorDeposit(t *testing.T, app *testApp, accountID string, amount int64, reference, nonce string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"account_id": accountID,
		"amount":     amount,
		"reference":  reference,
	})
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	payload := timestamp + "." + nonce + "." + string(body)
	mac := hmac.New(sha256.New, []byte(monitorSecret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/monitor/deposits", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Nonce", nonce)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
