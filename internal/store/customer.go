package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iurnickita/storecredit/internal/model"
)

const customerColumns = "id, seller_id, full_name, phone, created_at"

func (store *store) CustomerCreate(ctx context.Context, seller int64, fullName string, phone string) (model.CreditCustomer, error) {
	customer := model.CreditCustomer{
		Data: model.CreditCustomerData{
			Seller:    seller,
			FullName:  fullName,
			Phone:     phone,
			CreatedAt: time.Now().UTC(),
		},
	}

	// Запись нового покупателя
	row := store.queryRow(ctx,
		"INSERT INTO credit_customers (seller_id, full_name, phone, created_at)"+
			" VALUES (?, ?, ?, ?)"+
			" RETURNING id",
		seller,
		fullName,
		nullString(phone),
		customer.Data.CreatedAt)
	if err := row.Scan(&customer.ID); err != nil {
		// Проверка: телефон уже занят
		if isUniqueViolation(err) {
			return model.CreditCustomer{}, ErrAlreadyExists
		}
		return model.CreditCustomer{}, err
	}

	return customer, nil
}

func (store *store) CustomerGet(ctx context.Context, seller int64, id int64) (model.CreditCustomer, error) {
	return store.customerOne(ctx,
		"SELECT "+customerColumns+" FROM credit_customers"+
			" WHERE seller_id = ? AND id = ?",
		seller, id)
}

func (store *store) CustomerFindByPhone(ctx context.Context, seller int64, phone string) (model.CreditCustomer, error) {
	return store.customerOne(ctx,
		"SELECT "+customerColumns+" FROM credit_customers"+
			" WHERE seller_id = ? AND phone = ?",
		seller, phone)
}

// CustomerFindByName matches a case-insensitive substring of the full name and
// returns the first match in name order.
func (store *store) CustomerFindByName(ctx context.Context, seller int64, name string) (model.CreditCustomer, error) {
	pattern := "%" + strings.ToLower(name) + "%"
	return store.customerOne(ctx,
		"SELECT "+customerColumns+" FROM credit_customers"+
			" WHERE seller_id = ? AND LOWER(full_name) LIKE ?"+
			" ORDER BY full_name, id"+
			" LIMIT 1",
		seller, pattern)
}

func (store *store) customerOne(ctx context.Context, query string, args ...any) (model.CreditCustomer, error) {
	var customer model.CreditCustomer
	var phone sql.NullString
	err := store.queryRow(ctx, query, args...).Scan(&customer.ID,
		&customer.Data.Seller,
		&customer.Data.FullName,
		&phone,
		timestamp{&customer.Data.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CreditCustomer{}, ErrNoRows
		}
		return model.CreditCustomer{}, err
	}
	customer.Data.Phone = phone.String
	return customer, nil
}

// CustomerList returns the seller's customers with their limits. Customers
// without a limit row report the defaults a lazily created row would get.
func (store *store) CustomerList(ctx context.Context, seller int64) ([]model.CustomerSummary, error) {
	rows, err := store.query(ctx,
		"SELECT c.id, c.seller_id, c.full_name, c.phone, c.created_at,"+
			" COALESCE(l.max_amount, ?), COALESCE(l.used_amount, 0), COALESCE(l.active, TRUE)"+
			" FROM credit_customers AS c"+
			" LEFT JOIN credit_limits AS l"+
			"   ON l.customer_id = c.id AND l.seller_id = c.seller_id"+
			" WHERE c.seller_id = ?"+
			" ORDER BY c.full_name, c.id",
		store.defaultMax, seller)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []model.CustomerSummary
	for rows.Next() {
		var summary model.CustomerSummary
		var phone sql.NullString
		err := rows.Scan(&summary.Customer.ID,
			&summary.Customer.Data.Seller,
			&summary.Customer.Data.FullName,
			&phone,
			timestamp{&summary.Customer.Data.CreatedAt},
			&summary.MaxCredit,
			&summary.CurrentUsed,
			&summary.LimitActive)
		if err != nil {
			return nil, err
		}
		summary.Customer.Data.Phone = phone.String
		customers = append(customers, summary)
	}

	return customers, rows.Err()
}

func (store *store) CustomerRename(ctx context.Context, seller int64, id int64, fullName string) error {
	res, err := store.exec(ctx,
		"UPDATE credit_customers SET full_name = ?"+
			" WHERE seller_id = ? AND id = ?",
		fullName, seller, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}
