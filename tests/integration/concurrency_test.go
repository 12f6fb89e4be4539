package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWithdrawals_NoOverdraft fires 10 concurrent withdrawals of
// 100,000 each against a 500,000 balance. The conditional balance update is
// a single atomic step, so exactly 5 succeed and the balance lands on 0.
// The refused 5 fail their transactions without touching the balance.
func TestConcurrentWithdrawals_NoOverdraft(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "racer@example.com")
	app.approveKYC(t, "racer@example.com")
	accountID := accountIDFor(t, app, "racer@example.com")

	resp := postMonitorDeposit(t, app, accountID, 500000, "chain-tx-race", "nonce-race")
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	concurrency := 10
	withdrawAmount := int64(100000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	var refusedCount atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			body := fmt.Sprintf(`{"amount":%d,"reference":"race-wd-%d"}`, withdrawAmount, idx)
			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/wallet/withdrawals", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()
			_, _ = io.ReadAll(r.Body)

			switch r.StatusCode {
			case http.StatusCreated:
				successCount.Add(1)
			case http.StatusPaymentRequired:
				refusedCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Concurrent withdrawals: %d succeeded, %d refused (out of %d)",
		successCount.Load(), refusedCount.Load(), concurrency)

	assert.Equal(t, int64(5), successCount.Load(), "exactly the affordable withdrawals succeed")
	assert.Equal(t, int64(5), refusedCount.Load(), "the rest are refused for insufficient funds")
	assert.Equal(t, int64(0), balanceOf(t, app, token))
}

// TestConcurrentDeposits_SameReference fires 20 concurrent monitor webhooks
// carrying the same deposit reference. The unique (account, reference) index
// collapses them onto one ledger entry: every request returns the same
// transaction ID.
func TestConcurrentDeposits_SameReference(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := registerAndLogin(t, app, "dupdep@example.com")
	accountID := accountIDFor(t, app, "dupdep@example.com")

	concurrency := 20
	depositAmount := int64(75000)

	var wg sync.WaitGroup
	var successCount atomic.Int64
	txIDs := make([]string, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			nonce := fmt.Sprintf("nonce-dup-%d-%d", idx, time.Now().UnixNano())
			body := fmt.Sprintf(`{"account_id":"%s","amount":%d,"reference":"chain-tx-dup"}`, accountID, depositAmount)
			timestamp := strconv.FormatInt(time.Now().Unix(), 10)

			payload := timestamp + "." + nonce + "." + body
			mac := hmac.New(sha256.New, []byte(monitorSecret))
			mac.Write([]byte(payload))
			signature := hex.EncodeToString(mac.Sum(nil))

			req, _ := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/monitor/deposits", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Signature", signature)
			req.Header.Set("X-Timestamp", timestamp)
			req.Header.Set("X-Nonce", nonce)

			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			defer r.Body.Close()

			if r.StatusCode == http.StatusCreated {
				successCount.Add(1)
				var result struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				}
				_ = json.NewDecoder(r.Body).Decode(&result)
				txIDs[idx] = result.Data.ID
			}
		}(i)
	}

	wg.Wait()

	t.Logf("Duplicate deposits: %d succeeded (out of %d)", successCount.Load(), concurrency)
	assert.Equal(t, int64(concurrency), successCount.Load(), "redeliveries succeed idempotently")

	uniqueIDs := make(map[string]struct{})
	for _, id := range txIDs {
		if id != "" {
			uniqueIDs[id] = struct{}{}
		}
	}
	assert.Len(t, uniqueIDs, 1, "all redeliveries converge on one ledger entry")

	// Concurrent settles of the one entry serialize on a row lock in the real
	// store; the in-memory repo has no row locks, so only the lower bound and
	// non-negativity are asserted here.
	balance := balanceOf(t, app, token)
	t.Logf("Final balance: %d", balance)
	assert.GreaterOrEqual(t, balance, depositAmount)
}
