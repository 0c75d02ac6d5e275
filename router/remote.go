package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
)

// Remote is an exchange reached over HTTP. Amounts travel as strings of raw
// 1e-18 units.
//
//	POST {url}/swap  {"path":[...],"amountIn":"1000","minAmountOut":"1","deadline":1700000000}
//	              -> {"amountOut":"997"}
//	POST {url}/quote {"path":[...],"amountIn":"1000"}
//	              -> {"amounts":["1000","997"]}
//
// Failures are reported with a non 2xx status and {"error":"EXPIRED"}.
type Remote struct {
	url    string
	client *http.Client

	// JSONPath expressions locating the results in responses.
	AmountOutPath string
	AmountsPath   string
	ErrorPath     string
}

// NewRemote returns a router posting to 'url'. A nil client means http.DefaultClient.
func NewRemote(url string, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{
		url:           strings.TrimSuffix(url, "/"),
		client:        client,
		AmountOutPath: "$.amountOut",
		AmountsPath:   "$.amounts",
		ErrorPath:     "$.error",
	}
}

type swapRequest struct {
	Path         []common.Address `json:"path"`
	AmountIn     string           `json:"amountIn"`
	MinAmountOut string           `json:"minAmountOut,omitempty"`
	Deadline     int64            `json:"deadline,omitempty"`
}

// SwapExactIn asks the remote exchange to execute the swap.
func (r *Remote) SwapExactIn(ctx context.Context, path []common.Address, in, minOut folio.Amount, deadline time.Time) (folio.Amount, error) {
	req := swapRequest{Path: path, AmountIn: in.Units(), MinAmountOut: minOut.Units(), Deadline: deadline.Unix()}
	var jobj any
	if err := r.post(ctx, "/swap", req, &jobj); err != nil {
		return folio.Amount{}, err
	}
	jval, err := first(jsonpath.Get(r.AmountOutPath, jobj))
	if err != nil {
		return folio.Amount{}, fmt.Errorf("error parsing swap response: %q %w", r.AmountOutPath, err)
	}
	return units(jval)
}

// AmountsOut asks the remote exchange to quote the swap.
func (r *Remote) AmountsOut(ctx context.Context, in folio.Amount, path []common.Address) ([]folio.Amount, error) {
	req := swapRequest{Path: path, AmountIn: in.Units()}
	var jobj any
	if err := r.post(ctx, "/quote", req, &jobj); err != nil {
		return nil, err
	}
	jval, err := jsonpath.Get(r.AmountsPath, jobj)
	if err != nil {
		return nil, fmt.Errorf("error parsing quote response: %q %w", r.AmountsPath, err)
	}
	jlist, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("error parsing quote response: %q is not a list: %v", r.AmountsPath, jval)
	}
	amounts := make([]folio.Amount, len(jlist))
	for i, v := range jlist {
		if amounts[i], err = units(v); err != nil {
			return nil, fmt.Errorf("quote hop #%d: %w", i, err)
		}
	}
	return amounts, nil
}

// post sends 'body' as JSON and decodes the JSON response into 'data'.
func (r *Remote) post(ctx context.Context, endpoint string, body, data any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	log.Printf("%v %v%v %v", req.Method, req.URL.Host, req.URL.Path, resp.Status)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return r.failure(req, resp.Status, buf.Bytes())
	}
	// Raw units overflow float64 precision, numbers are kept as written.
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	return dec.Decode(data)
}

// failure turns an error response into an error, mapping known reasons to vault errors.
func (r *Remote) failure(req *http.Request, status string, body []byte) error {
	reason := strings.TrimSpace(string(body))
	var jobj any
	if json.Unmarshal(body, &jobj) == nil {
		if jval, err := first(jsonpath.Get(r.ErrorPath, jobj)); err == nil {
			if s, ok := jval.(string); ok {
				reason = s
			}
		}
	}
	err := fmt.Errorf("cannot http POST %v%v: %v: %s", req.URL.Host, req.URL.Path, status, reason)
	switch {
	case strings.Contains(reason, "EXPIRED"):
		return fmt.Errorf("%w: %w", err, folio.ErrDeadlineExpired)
	case strings.Contains(reason, "INSUFFICIENT_OUTPUT_AMOUNT"):
		return fmt.Errorf("%w: %w", err, folio.ErrSlippageExceeded)
	}
	return err
}

// first keeps the first answer when jsonpath returns a list of answers.
func first(jval any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		return jlist[0], nil
	}
	return jval, nil
}

// units reads raw units given either as a string or as a JSON number.
func units(jval any) (folio.Amount, error) {
	switch v := jval.(type) {
	case string:
		return folio.ParseUnits(v)
	case json.Number:
		return folio.ParseUnits(v.String())
	default:
		return folio.Amount{}, fmt.Errorf("%v is neither a string nor a number", jval)
	}
}
