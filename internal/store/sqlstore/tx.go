package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"digilib/internal/models"
	"digilib/internal/store"
)

const (
	tableBooks     = "books"
	tableCopies    = "copies"
	tableLoans     = "loans"
	tableRequests  = "requests"
	tableWaitlists = "waitlists"
	tableReviews   = "reviews"
)

type tx struct {
	ctx       context.Context
	tx        *sqlx.Tx
	d         goqu.DialectWrapper
	readOnly  bool
	forUpdate bool
}

func (t *tx) get(dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("błąd budowania zapytania: %w", err)
	}
	if err := t.tx.GetContext(t.ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("błąd odczytu: %w", err)
	}
	return nil
}

func (t *tx) list(dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("błąd budowania zapytania: %w", err)
	}
	if err := t.tx.SelectContext(t.ctx, dest, query, args...); err != nil {
		return fmt.Errorf("błąd odczytu listy: %w", err)
	}
	return nil
}

func (t *tx) exec(query string, args []any, err error) (sql.Result, error) {
	if err != nil {
		return nil, fmt.Errorf("błąd budowania zapytania: %w", err)
	}
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("błąd zapisu: %w", err)
	}
	return res, nil
}

// put aktualizuje wiersz, a gdy go nie ma - wstawia nowy
func (t *tx) put(table string, key goqu.Ex, row any) error {
	if t.readOnly {
		return ErrReadOnly
	}
	query, args, err := t.d.Update(table).Prepared(true).Set(row).Where(key).ToSQL()
	res, err := t.exec(query, args, err)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("błąd odczytu liczby zmienionych wierszy: %w", err)
	}
	if n > 0 {
		return nil
	}
	query, args, err = t.d.Insert(table).Prepared(true).Rows(row).ToSQL()
	_, err = t.exec(query, args, err)
	return err
}

func (t *tx) delete(table string, key goqu.Ex) error {
	if t.readOnly {
		return ErrReadOnly
	}
	query, args, err := t.d.Delete(table).Prepared(true).Where(key).ToSQL()
	res, err := t.exec(query, args, err)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("błąd odczytu liczby usuniętych wierszy: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// selectRow buduje odczyt pojedynczego wiersza. W transakcji zapisu na
// PostgreSQL wiersz zostaje zablokowany (FOR UPDATE) do jej końca.
func (t *tx) selectRow(table string, where goqu.Ex) *goqu.SelectDataset {
	ds := t.d.From(table).Where(where)
	if t.forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}
	return ds
}

func (t *tx) GetBook(id string) (*models.Book, error) {
	var row bookRow
	if err := t.get(&row, t.selectRow(tableBooks, goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (t *tx) ListBooks() ([]*models.Book, error) {
	var rows []bookRow
	if err := t.list(&rows, t.d.From(tableBooks)); err != nil {
		return nil, err
	}
	out := make([]*models.Book, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	store.SortBooks(out)
	return out, nil
}

func (t *tx) PutBook(b *models.Book) error {
	return t.put(tableBooks, goqu.Ex{"id": b.ID}, newBookRow(b))
}

func (t *tx) GetCopy(id string) (*models.Copy, error) {
	var row copyRow
	if err := t.get(&row, t.selectRow(tableCopies, goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (t *tx) GetCopyByBarcode(barcode string) (*models.Copy, error) {
	var row copyRow
	if err := t.get(&row, t.selectRow(tableCopies, goqu.Ex{"barcode": barcode})); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (t *tx) ListCopies(bookID string) ([]*models.Copy, error) {
	var rows []copyRow
	ds := t.d.From(tableCopies).Where(goqu.Ex{"book_id": bookID}).Order(goqu.I("serial").Asc())
	if err := t.list(&rows, ds); err != nil {
		return nil, err
	}
	out := make([]*models.Copy, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (t *tx) PutCopy(c *models.Copy) error {
	return t.put(tableCopies, goqu.Ex{"id": c.ID}, newCopyRow(c))
}

func (t *tx) DeleteCopy(id string) error {
	return t.delete(tableCopies, goqu.Ex{"id": id})
}

func (t *tx) GetLoan(id string) (*models.Loan, error) {
	var row loanRow
	if err := t.get(&row, t.selectRow(tableLoans, goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (t *tx) ListLoans(f store.LoanFilter) ([]*models.Loan, error) {
	where := goqu.Ex{}
	if f.BorrowerID != "" {
		where["borrower_id"] = f.BorrowerID
	}
	if f.BookID != "" {
		where["book_id"] = f.BookID
	}
	if f.CopyID != "" {
		where["copy_id"] = f.CopyID
	}
	if f.Status != "" {
		where["status"] = string(f.Status)
	}
	ds := t.d.From(tableLoans).Order(goqu.I("checkout_date").Asc(), goqu.I("id").Asc())
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	var rows []loanRow
	if err := t.list(&rows, ds); err != nil {
		return nil, err
	}
	out := make([]*models.Loan, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (t *tx) PutLoan(l *models.Loan) error {
	return t.put(tableLoans, goqu.Ex{"id": l.ID}, newLoanRow(l))
}

func (t *tx) GetRequest(id string) (*models.Request, error) {
	var row requestRow
	if err := t.get(&row, t.selectRow(tableRequests, goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return row.model(), nil
}

func (t *tx) ListRequests(f store.RequestFilter) ([]*models.Request, error) {
	where := goqu.Ex{}
	if f.BorrowerID != "" {
		where["borrower_id"] = f.BorrowerID
	}
	if f.BookID != "" {
		where["book_id"] = f.BookID
	}
	if f.Type != "" {
		where["request_type"] = string(f.Type)
	}
	if f.Status != "" {
		where["status"] = string(f.Status)
	}
	ds := t.d.From(tableRequests).Order(goqu.I("request_date").Asc(), goqu.I("id").Asc())
	if len(where) > 0 {
		ds = ds.Where(where)
	}
	var rows []requestRow
	if err := t.list(&rows, ds); err != nil {
		return nil, err
	}
	out := make([]*models.Request, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (t *tx) PutRequest(r *models.Request) error {
	return t.put(tableRequests, goqu.Ex{"id": r.ID}, newRequestRow(r))
}

func (t *tx) GetWaitlist(bookID string) (*models.Waitlist, error) {
	var row waitlistRow
	err := t.get(&row, t.selectRow(tableWaitlists, goqu.Ex{"book_id": bookID}))
	if errors.Is(err, store.ErrNotFound) {
		return &models.Waitlist{BookID: bookID}, nil
	}
	if err != nil {
		return nil, err
	}
	return row.model()
}

func (t *tx) PutWaitlist(w *models.Waitlist) error {
	row, err := newWaitlistRow(w)
	if err != nil {
		return err
	}
	return t.put(tableWaitlists, goqu.Ex{"book_id": w.BookID}, row)
}

func (t *tx) GetReview(id string) (*models.Review, error) {
	var row reviewRow
	if err := t.get(&row, t.d.From(tableReviews).Where(goqu.Ex{"id": id})); err != nil {
		return nil, err
	}
	return row.model()
}

func (t *tx) ListReviews(bookID string) ([]*models.Review, error) {
	ds := t.d.From(tableReviews).Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())
	if bookID != "" {
		ds = ds.Where(goqu.Ex{"book_id": bookID})
	}
	var rows []reviewRow
	if err := t.list(&rows, ds); err != nil {
		return nil, err
	}
	out := make([]*models.Review, 0, len(rows))
	for _, r := range rows {
		m, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *tx) PutReview(r *models.Review) error {
	row, err := newReviewRow(r)
	if err != nil {
		return err
	}
	return t.put(tableReviews, goqu.Ex{"id": r.ID}, row)
}

func (t *tx) DeleteReview(id string) error {
	return t.delete(tableReviews, goqu.Ex{"id": id})
}
