package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/iurnickita/storecredit/internal/model"
	"github.com/iurnickita/storecredit/internal/service"
)

// Лимиты

func (h *handler) GetLimit(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit, found, err := h.service.GetLimit(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, limitJSON(key, limit, found))
}

func (h *handler) PutLimit(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PutLimitJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	threshold := model.DefaultWarningThreshold
	if req.WarningThreshold != nil {
		threshold = *req.WarningThreshold
	}

	limit, err := h.service.SetLimit(r.Context(), key, req.MaxAmount, threshold)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, limitJSON(key, limit, true))
}

func (h *handler) PostLimitDeactivate(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err = h.service.DeactivateLimit(r.Context(), key); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) PostLimitReset(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err = h.service.ResetUsed(r.Context(), key); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Проверка и операции

func (h *handler) PostCheck(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PostCheckJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	decision, err := h.service.CheckLimit(r.Context(), key, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// отказ здесь это ответ, а не ошибка
	writeJSON(w, http.StatusOK, decisionJSON(decision))
}

func (h *handler) PostPurchase(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PostAmountJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.service.Checkout(r.Context(), service.CheckoutRequest{
		Key:            key,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, service.ErrLimitExceeded) {
			response := checkoutJSON(result)
			response.Error = err.Error()
			writeJSON(w, http.StatusPaymentRequired, response)
			return
		}
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, checkoutJSON(result))
}

func (h *handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PostAmountJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.service.RecordPayment(r.Context(), key, req.Amount, req.Description, req.IdempotencyKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionJSON(entry))
}

func (h *handler) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PostAdjustmentJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.service.RecordAdjustment(r.Context(), key, req.Amount, req.Description, req.IdempotencyKey)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionJSON(entry))
}

// Журнал

func (h *handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	current, err := h.service.Balance(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceJSONResponse{CustomerID: key.Customer, Balance: current})
}

func (h *handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.writeError(w, r, service.NewServiceError(service.CodeInvalidRequest, errors.New("limit must be a positive integer")))
			return
		}
	}

	entries, err := h.service.Statement(r.Context(), key, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entriesJSON := make([]TransactionJSONResponse, 0, len(entries))
	for _, e := range entries {
		entriesJSON = append(entriesJSON, transactionJSON(e))
	}
	writeJSON(w, http.StatusOK, entriesJSON)
}

func (h *handler) GetDrift(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	drift, err := h.service.Drift(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driftJSON(drift))
}

func (h *handler) PostReconcile(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	drift, err := h.service.Reconcile(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, driftJSON(drift))
}
