package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/google/go-cmp/cmp"
)

// newTestServer serves /swap and /quote out of a local pool set.
func newTestServer(t *testing.T, p *Pools) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /swap", func(w http.ResponseWriter, r *http.Request) {
		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in, _ := folio.ParseUnits(req.AmountIn)
		minOut, _ := folio.ParseUnits(req.MinAmountOut)
		out, err := p.SwapExactIn(r.Context(), req.Path, in, minOut, time.Unix(req.Deadline, 0))
		if err != nil {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"amountOut": out.Units()})
	})
	mux.HandleFunc("POST /quote", func(w http.ResponseWriter, r *http.Request) {
		var req swapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in, _ := folio.ParseUnits(req.AmountIn)
		amounts, err := p.AmountsOut(r.Context(), in, req.Path)
		if err != nil {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		units := make([]string, len(amounts))
		for i, a := range amounts {
			units[i] = a.Units()
		}
		json.NewEncoder(w).Encode(map[string][]string{"amounts": units})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_SwapExactIn(t *testing.T) {
	p, _ := newTestPools(t)
	local, _ := newTestPools(t)
	srv := newTestServer(t, p)
	r := NewRemote(srv.URL+"/", srv.Client())
	ctx := context.Background()
	path := []common.Address{USDT, WETH, WBTC}

	quote, err := r.AmountsOut(ctx, folio.W(5), path)
	if err != nil {
		t.Fatalf("AmountsOut() unexpected error: %v", err)
	}
	want, err := local.AmountsOut(ctx, folio.W(5), path)
	if err != nil {
		t.Fatalf("local AmountsOut() unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, quote); diff != "" {
		t.Errorf("AmountsOut() mismatch (-want +got):\n%s", diff)
	}

	out, err := r.SwapExactIn(ctx, path, folio.W(5), quote[2], epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	if !out.Equal(quote[2]) {
		t.Errorf("SwapExactIn() = %v, want %v", out, quote[2])
	}
}

func TestRemote_Failures(t *testing.T) {
	p, _ := newTestPools(t)
	srv := newTestServer(t, p)
	r := NewRemote(srv.URL, nil)
	ctx := context.Background()
	path := []common.Address{USDT, WETH}

	testCases := []struct {
		name     string
		minOut   folio.Amount
		deadline time.Time
		wantErr  error
	}{
		{name: "expired", deadline: epoch.Add(-time.Hour), wantErr: folio.ErrDeadlineExpired},
		{name: "insufficient output", minOut: folio.W(100), deadline: epoch.Add(time.Hour), wantErr: folio.ErrSlippageExceeded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.SwapExactIn(ctx, path, folio.W(1), tc.minOut, tc.deadline)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("SwapExactIn() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := r.SwapExactIn(ctx, []common.Address{DAI, WBTC}, folio.W(1), folio.U(1), epoch.Add(time.Hour)); err == nil {
		t.Error("SwapExactIn() expected an error for a missing pair")
	}
}

func TestRemote_NumbersKeepEveryDigit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"amountOut":1234567890123456789012}`))
	}))
	t.Cleanup(srv.Close)

	r := NewRemote(srv.URL, srv.Client())
	out, err := r.SwapExactIn(context.Background(), []common.Address{USDT, WETH}, folio.W(1), folio.U(1), epoch)
	if err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	if want := folio.MustParseAmount("1234.567890123456789012"); !out.Equal(want) {
		t.Errorf("SwapExactIn() = %s units, want %s", out.Units(), want.Units())
	}
}

func TestRemote_CustomPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"amounts":[{"out":"42"}]}}`))
	}))
	t.Cleanup(srv.Close)

	r := NewRemote(srv.URL, srv.Client())
	r.AmountOutPath = "$.result.amounts[0].out"
	out, err := r.SwapExactIn(context.Background(), []common.Address{USDT, WETH}, folio.W(1), folio.U(1), epoch)
	if err != nil {
		t.Fatalf("SwapExactIn() unexpected error: %v", err)
	}
	if !out.Equal(folio.U(42)) {
		t.Errorf("SwapExactIn() = %s units, want 42", out.Units())
	}
}
