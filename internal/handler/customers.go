package handler

import (
	"net/http"

	"github.com/iurnickita/storecredit/internal/auth"
)

func (h *handler) PostCustomer(w http.ResponseWriter, r *http.Request) {
	seller, ok := auth.SellerFromContext(r.Context())
	if !ok {
		h.writeError(w, r, auth.ErrNoToken)
		return
	}

	var req PostCustomerJSONRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), seller, req.FullName, req.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customerJSON(customer))
}

func (h *handler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	seller, ok := auth.SellerFromContext(r.Context())
	if !ok {
		h.writeError(w, r, auth.ErrNoToken)
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), seller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	customersJSON := make([]CustomerSummaryJSONResponse, 0, len(customers))
	for _, c := range customers {
		customersJSON = append(customersJSON, CustomerSummaryJSONResponse{
			CustomerJSONResponse: customerJSON(c.Customer),
			MaxCredit:            c.MaxCredit,
			CurrentUsed:          c.CurrentUsed,
			LimitActive:          c.LimitActive,
		})
	}
	writeJSON(w, http.StatusOK, customersJSON)
}

func (h *handler) GetCustomerLookup(w http.ResponseWriter, r *http.Request) {
	seller, ok := auth.SellerFromContext(r.Context())
	if !ok {
		h.writeError(w, r, auth.ErrNoToken)
		return
	}

	query := r.URL.Query()
	customer, err := h.service.FindCustomer(r.Context(), seller, query.Get("phone"), query.Get("name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customerJSON(customer))
}

func (h *handler) PatchCustomer(w http.ResponseWriter, r *http.Request) {
	key, err := creditKey(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req PatchCustomerJSONRequest
	if err = h.decodeAndValidate(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err = h.service.RenameCustomer(r.Context(), key.Seller, key.Customer, req.FullName); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
