// Package creditclient calls the storecredit HTTP API on behalf of a seller.
package creditclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/storecredit/internal/creditclient/config"
	"github.com/iurnickita/storecredit/internal/handler"
)

type CreditClient interface {
	Balance(ctx context.Context, customer int64) (handler.BalanceJSONResponse, error)
	Statement(ctx context.Context, customer int64, limit int) ([]handler.TransactionJSONResponse, error)
	Check(ctx context.Context, customer int64, amount decimal.Decimal) (handler.DecisionJSONResponse, error)
	Pay(ctx context.Context, customer int64, amount decimal.Decimal, description string) (handler.TransactionJSONResponse, error)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("credit api request status: %d", e.StatusCode)
	}
	return fmt.Sprintf("credit api request status: %d: %s", e.StatusCode, e.Message)
}

type creditClient struct {
	client *resty.Client
}

func NewCreditClient(cfg config.Config) CreditClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &creditClient{client: client}
}

func customerPath(customer int64, tail string) string {
	return "/api/customers/" + strconv.FormatInt(customer, 10) + tail
}

func (c *creditClient) Balance(ctx context.Context, customer int64) (handler.BalanceJSONResponse, error) {
	var answer handler.BalanceJSONResponse
	err := c.send(ctx, http.MethodGet, customerPath(customer, "/balance"), nil, &answer)
	return answer, err
}

func (c *creditClient) Statement(ctx context.Context, customer int64, limit int) ([]handler.TransactionJSONResponse, error) {
	path := customerPath(customer, "/statement")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var answer []handler.TransactionJSONResponse
	err := c.send(ctx, http.MethodGet, path, nil, &answer)
	return answer, err
}

func (c *creditClient) Check(ctx context.Context, customer int64, amount decimal.Decimal) (handler.DecisionJSONResponse, error) {
	var answer handler.DecisionJSONResponse
	err := c.send(ctx, http.MethodPost, customerPath(customer, "/check"),
		handler.PostCheckJSONRequest{Amount: amount}, &answer)
	return answer, err
}

// Pay records a payment. Each call gets its own idempotency key so a retried
// request is booked once.
func (c *creditClient) Pay(ctx context.Context, customer int64, amount decimal.Decimal, description string) (handler.TransactionJSONResponse, error) {
	var answer handler.TransactionJSONResponse
	err := c.send(ctx, http.MethodPost, customerPath(customer, "/payments"),
		handler.PostAmountJSONRequest{
			Amount:         amount,
			Description:    description,
			IdempotencyKey: uuid.NewString(),
		}, &answer)
	return answer, err
}

func (c *creditClient) send(ctx context.Context, method string, path string, body any, answer any) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return json.Unmarshal(resp.Body(), answer)
	default:
		var errorAnswer handler.ErrorJSONResponse
		_ = json.Unmarshal(resp.Body(), &errorAnswer)
		return &StatusError{StatusCode: resp.StatusCode(), Message: errorAnswer.Error}
	}
}
