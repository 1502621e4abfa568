package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	applog "laundrytrack/internal/log"
	"laundrytrack/internal/records"
	"laundrytrack/internal/services"
	"laundrytrack/internal/table"
)

// maxImportBytes bounds uploaded workbooks.
const maxImportBytes = 10 << 20

// deleteResult is the body of a successful delete.
type deleteResult struct {
	ID     string `json:"id"`
	Notice string `json:"notice,omitempty"`
}

func (s *Server) logChange(r *http.Request, op string, kind records.Kind, id string) {
	s.logger.LogRecordChange(r.Context(), op, string(kind), id, s.store.Version())
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(reports).Write(w)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(rep).Write(w)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r).ReportInput()
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	res, err := s.svc.CreateReport(r.Context(), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpCreate, records.KindReport, res.Record.ID)
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/reports/"+res.Record.ID).
		Notice(res.Notice).Body(res).Write(w)
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r).ReportInput()
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	res, err := s.svc.UpdateReport(r.Context(), r.PathValue("id"), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpUpdate, records.KindReport, res.Record.ID)
	NewJSONResponse().Notice(res.Notice).Body(res).Write(w)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	notice, err := s.svc.DeleteReport(r.Context(), id)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpDelete, records.KindReport, id)
	NewJSONResponse().Notice(notice).Body(deleteResult{ID: id, Notice: notice}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.store.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r).TransactionInput()
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	res, err := s.svc.CreateTransaction(r.Context(), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpCreate, records.KindTransaction, res.Record.ID)
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+res.Record.ID).
		Notice(res.Notice).Body(res).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(w, r).TransactionInput()
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	res, err := s.svc.UpdateTransaction(r.Context(), r.PathValue("id"), in)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpUpdate, records.KindTransaction, res.Record.ID)
	NewJSONResponse().Notice(res.Notice).Body(res).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	notice, err := s.svc.DeleteTransaction(r.Context(), id)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	s.logChange(r, applog.OpDelete, records.KindTransaction, id)
	NewJSONResponse().Notice(notice).Body(deleteResult{ID: id, Notice: notice}).Write(w)
}

// handleRecords serves the combined records table:
// ?q=search&sort=year|month|amount&dir=asc|desc&page=N.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q, "page", 1)
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	sortKey := strings.ToLower(strings.TrimSpace(q.Get("sort")))
	switch sortKey {
	case "", "year", "month", "amount":
	default:
		BadRequestError(fmt.Sprintf("unknown sort key %q", sortKey)).Write(w)
		return
	}
	dir := strings.ToLower(strings.TrimSpace(q.Get("dir")))
	if dir != "" && dir != "asc" && dir != "desc" {
		BadRequestError(fmt.Sprintf("unknown sort direction %q", dir)).Write(w)
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	NewJSONResponse().Body(table.Build(snap, table.Query{
		Search:   sanitizeInput(q.Get("q")),
		Sort:     sortKey,
		Desc:     dir == "desc",
		Page:     page,
		PageSize: s.pageSize,
	})).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.svc.Export(r.Context())
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	name := fmt.Sprintf("laundry-%s.xlsx", s.now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImport merges an uploaded workbook (multipart field "file").
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		BadRequestError("expected a multipart upload with a file field").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, _, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer f.Close()

	res, err := s.svc.Import(r.Context(), f)
	if errors.Is(err, services.ErrBadWorkbook) {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	if err != nil {
		ErrorFor(r, err).Write(w)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Workbook imported via API",
		applog.FieldOperation, applog.OpImport,
		"reports_added", res.Record.ReportsAdded,
		"transactions_added", res.Record.TransactionsAdded)
	NewJSONResponse().Notice(res.Notice).Body(res).Write(w)
}
