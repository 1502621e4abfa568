package log

import "log/slog"

// Field names shared by every component.
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldYear         = "year"
	FieldMonth        = "month"
	FieldRecordKind   = "record_kind"
	FieldRecordID     = "record_id"
	FieldStoreVersion = "store_version"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentDashboard = "dashboard"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentMirror    = "mirror"
	ComponentBackend   = "backend"
)

// Operation names.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpImport = "import"
	OpExport = "export"
	OpSync   = "sync"
)

// Fields collects attributes in insertion order so log lines stay stable.
type Fields []slog.Attr

// NewFields starts an empty attribute list.
func NewFields() Fields {
	return make(Fields, 0, 8)
}

func (f Fields) WithOperation(op string) Fields {
	return append(f, slog.String(FieldOperation, op))
}

func (f Fields) WithClientIP(ip string) Fields {
	if ip == "" {
		return f
	}
	return append(f, slog.String(FieldClientIP, ip))
}

// WithError is a no-op for a nil error.
func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return append(f, slog.String(FieldError, err.Error()))
}

// WithRecord adds the kind and id of a stored record.
func (f Fields) WithRecord(kind, id string) Fields {
	return append(f, slog.String(FieldRecordKind, kind), slog.String(FieldRecordID, id))
}

// WithPeriod adds a declared year and 0-based month.
func (f Fields) WithPeriod(year, month int) Fields {
	return append(f, slog.Int(FieldYear, year), slog.Int(FieldMonth, month))
}

func (f Fields) WithStoreVersion(v uint64) Fields {
	return append(f, slog.Uint64(FieldStoreVersion, v))
}

func (f Fields) WithHTTPRequest(method, path, query string) Fields {
	f = append(f, slog.String(FieldMethod, method), slog.String(FieldPath, path))
	if query != "" {
		f = append(f, slog.String(FieldQuery, query))
	}
	return f
}

func (f Fields) WithHTTPResponse(status int, durationMs int64) Fields {
	return append(f,
		slog.Int(FieldStatusCode, status),
		slog.Int64(FieldDuration, durationMs),
		slog.Bool(FieldSuccess, status < 400),
	)
}

// Args converts the list for the variadic slog methods.
func (f Fields) Args() []any {
	args := make([]any, len(f))
	for i, a := range f {
		args[i] = a
	}
	return args
}
