package http

import (
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/google/uuid"

	"zenith/internal/core"
	zlog "zenith/internal/log"
	"zenith/internal/transactions"
)

type listData struct {
	Transactions []core.Transaction
	Filter       ListFilter
	Total        int
}

type formData struct {
	Title       string
	Action      string
	Editing     bool
	ID          string
	Date        string
	Description string
	Amount      string
	Type        string
	Category    string
	Income      []core.Category
	Expense     []core.Category
	Error       string
	AIEnabled   bool
	Session     string
}

type deleteData struct {
	Transaction core.Transaction
}

type errorData struct {
	Title   string
	Message string
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	if isHTMX(r) {
		ErrorResponse(status, msg).Write(w)
		return
	}
	s.render(w, r, status, "error_page", errorData{Title: title, Message: msg})
}

// validationMessage turns a validation error into text for the form.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Enter an amount greater than zero, e.g. 85.30."
	case errors.Is(err, core.ErrEmptyDescription):
		return "A description is required."
	case errors.Is(err, core.ErrDescriptionLong):
		return err.Error()
	case errors.Is(err, core.ErrInvalidType):
		return "Choose income or expense."
	case errors.Is(err, core.ErrMissingCategory):
		return "Choose a category."
	case errors.Is(err, core.ErrCategoryType):
		return "That category does not belong to the selected type."
	case errors.Is(err, core.ErrZeroDate), errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay), errors.Is(err, core.ErrInvalidMonth):
		return "Enter a valid date."
	}
	return err.Error()
}

// newForm gives every rendered form its own suggestion session: the page's
// sequence counter starts over on each load, so a shared key would make a
// new form's first requests look older than the last form's.
func (s *Server) newForm() formData {
	return formData{
		Income:    s.registry.ByType(core.Income),
		Expense:   s.registry.ByType(core.Expense),
		AIEnabled: s.suggester != nil,
		Session:   "form_" + uuid.NewString(),
	}
}

func fillForm(f *formData, v url.Values) {
	f.Date = v.Get("date")
	f.Description = v.Get("description")
	f.Amount = v.Get("amount")
	f.Type = v.Get("type")
	f.Category = v.Get("category")
}

// handleListTransactions renders the list, most recent first. An htmx
// request targeting the table body gets only the rows.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ParseListFilter(r.URL.Query())
	all := recentFirst(s.store.List())
	shown := make([]core.Transaction, 0, len(all))
	for _, tx := range all {
		if filter.Match(tx, s.registry) {
			shown = append(shown, tx)
		}
	}
	data := listData{Transactions: shown, Filter: filter, Total: len(all)}

	if isHTMX(r) && r.Header.Get("HX-Target") == "transaction-rows" {
		s.render(w, r, http.StatusOK, "transaction_rows", data)
		return
	}
	s.render(w, r, http.StatusOK, "transactions_page", data)
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	f := s.newForm()
	f.Title = "New transaction"
	f.Action = "/transactions"
	f.Date = core.DateOf(s.now()).String()
	f.Type = string(core.Expense)
	if t, err := core.ParseTransactionType(r.URL.Query().Get("type")); err == nil {
		f.Type = string(t)
	}
	s.render(w, r, http.StatusOK, "form_page", f)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	tx, err := s.store.Get(id)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Not found", "That transaction does not exist.")
		return
	}
	f := s.newForm()
	f.Title = "Edit transaction"
	f.Action = "/transactions/" + url.PathEscape(id)
	f.Editing = true
	f.ID = id
	f.Date = tx.Date.String()
	f.Description = tx.Description
	f.Amount = tx.Amount.String()
	f.Type = string(tx.Type)
	f.Category = tx.CategoryID
	s.render(w, r, http.StatusOK, "form_page", f)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	var tx core.Transaction
	draft, err := ParseDraft(r.PostForm)
	if err == nil {
		tx, err = s.store.Create(r.Context(), draft)
	}
	s.respondSaved(w, r, "create", tx, err)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.PathValue("id")
	var tx core.Transaction
	draft, err := ParseDraft(r.PostForm)
	if err == nil {
		tx, err = s.store.Update(r.Context(), id, draft)
	}
	s.respondSaved(w, r, "update", tx, err)
}

// respondSaved maps the outcome of a create or update. A persist failure
// still counts as saved; the user is warned that it is not durable.
func (s *Server) respondSaved(w http.ResponseWriter, r *http.Request, op string, tx core.Transaction, err error) {
	ctx := r.Context()
	var persistErr *transactions.PersistError
	switch {
	case err == nil:
	case errors.As(err, &persistErr):
		atomic.AddInt64(&s.appMetrics.persistFailures, 1)
		s.events.LogError(ctx, "Transaction kept in memory only", err, zlog.ComponentStorage, op,
			zlog.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.CategoryID, tx.Amount.Cents, tx.Imported))
	case errors.Is(err, transactions.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Not found", "That transaction does not exist.")
		return
	case isValidation(err):
		msg := validationMessage(err)
		s.logger.InfoContext(ctx, "Rejected transaction input", zlog.FieldOperation, op, zlog.FieldError, err)
		if isHTMX(r) {
			UnprocessableEntityError(msg).Write(w)
			return
		}
		f := s.newForm()
		fillForm(&f, r.PostForm)
		f.Error = msg
		f.Title, f.Action = "New transaction", "/transactions"
		if op == "update" {
			id := r.PathValue("id")
			f.Title, f.Action, f.Editing, f.ID = "Edit transaction", "/transactions/"+url.PathEscape(id), true, id
		}
		s.render(w, r, http.StatusUnprocessableEntity, "form_page", f)
		return
	default:
		s.events.LogError(ctx, "Failed to save transaction", err, zlog.ComponentHTTP, op, nil)
		s.renderError(w, r, http.StatusInternalServerError, "Error", "The transaction could not be saved.")
		return
	}

	if op == "create" {
		atomic.AddInt64(&s.appMetrics.created, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.updated, 1)
	}
	s.events.LogTransactionSaved(ctx, op, tx.ID, string(tx.Type), tx.CategoryID, tx.Amount.Cents, tx.Imported)

	if !isHTMX(r) {
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
		return
	}
	resp := NewHTMXResponse().
		BodyHTML(`<div class="success" role="status">Saved.</div>`)
	if op == "create" {
		resp.TriggerTransactionCreated(tx.ID).TriggerFormReset()
	} else {
		resp.TriggerTransactionUpdated(tx.ID)
	}
	if persistErr != nil {
		resp.TriggerWarningNotification(persistWarning)
	} else {
		resp.TriggerSuccessNotification("Transaction saved")
	}
	resp.Write(w)
}

// handleDeleteTransaction serves the confirmation page on GET. POST and
// DELETE only remove the transaction when confirm=yes is sent; otherwise
// they answer 409 with the prompt.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()
	id := r.PathValue("id")

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		tx, err := s.store.Get(id)
		if err != nil {
			s.renderError(w, r, http.StatusNotFound, "Not found", "That transaction does not exist.")
			return
		}
		s.render(w, r, http.StatusOK, "delete_page", deleteData{Transaction: tx})
		return
	}

	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	if r.FormValue("confirm") != "yes" {
		tx, err := s.store.Get(id)
		if err != nil {
			tx = core.Transaction{ID: id}
		}
		s.render(w, r, http.StatusConflict, "delete_prompt", deleteData{Transaction: tx})
		return
	}

	removed, err := s.store.Delete(ctx, id)
	var persistErr *transactions.PersistError
	if err != nil && !errors.As(err, &persistErr) {
		s.events.LogError(ctx, "Failed to delete transaction", err, zlog.ComponentHTTP, "delete", nil)
		s.renderError(w, r, http.StatusInternalServerError, "Error", "The transaction could not be deleted.")
		return
	}
	if persistErr != nil {
		atomic.AddInt64(&s.appMetrics.persistFailures, 1)
		s.events.LogError(ctx, "Deletion kept in memory only", err, zlog.ComponentStorage, "delete", nil)
	}
	if removed {
		atomic.AddInt64(&s.appMetrics.deleted, 1)
		s.logger.InfoContext(ctx, "Transaction deleted", zlog.FieldTransactionID, id)
	}

	if !isHTMX(r) {
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
		return
	}
	resp := NewHTMXResponse()
	switch {
	case !removed:
		resp.TriggerNotification(NotificationInfo, "Transaction was already deleted", 3000)
	case persistErr != nil:
		resp.TriggerTransactionDeleted(id).TriggerWarningNotification(persistWarning)
	default:
		resp.TriggerTransactionDeleted(id).TriggerSuccessNotification("Transaction deleted")
	}
	resp.Write(w)
}
