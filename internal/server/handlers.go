package server

import (
	stderrors "errors"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/internal/export"
	"github.com/inferloop/kano/internal/ingest"
	"github.com/inferloop/kano/internal/privacy"
	"github.com/inferloop/kano/internal/table"
	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// DefaultBuildInfo is used when the binary was built without version
// information.
func DefaultBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   constants.AppVersion,
		GitCommit: "unknown",
		BuildDate: "unknown",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Handlers serves the anonymization API.
type Handlers struct {
	logger     *logrus.Logger
	anonymizer *privacy.Anonymizer
	exporter   *export.ExportEngine
	maxSteps   int
	buildInfo  BuildInfo
	startTime  time.Time
}

// AnonymizeResponse is the JSON body of a successful anonymize call.
type AnonymizeResponse struct {
	*privacy.Result
	View        string              `json:"view"`
	Generalized []map[string]string `json:"generalized,omitempty"`
}

// ColumnInfo describes one column of an inspected table.
type ColumnInfo struct {
	Name string     `json:"name"`
	Kind table.Kind `json:"kind"`
}

// InspectResponse is the JSON body of an inspect call.
type InspectResponse struct {
	Rows           int          `json:"rows"`
	Columns        []ColumnInfo `json:"columns"`
	NumericColumns []string     `json:"numeric_columns"`
}

// NewHandlers creates the API handlers. maxStepsLimit caps the max_steps a
// request may ask for.
func NewHandlers(anonymizer *privacy.Anonymizer, exporter *export.ExportEngine, maxStepsLimit int, buildInfo BuildInfo, logger *logrus.Logger) *Handlers {
	return &Handlers{
		logger:     logger,
		anonymizer: anonymizer,
		exporter:   exporter,
		maxSteps:   maxStepsLimit,
		buildInfo:  buildInfo,
		startTime:  time.Now(),
	}
}

// Anonymize reads a CSV body and runs the anonymizer over the columns named
// in the query. The response is CSV when the client accepts text/csv and
// JSON otherwise.
func (h *Handlers) Anonymize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	defaults := h.anonymizer.Config()

	columns := splitColumns(query.Get("columns"))
	k, err := intParam(query.Get("k"), defaults.K, errors.CodeInvalidK)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	maxSteps, err := intParam(query.Get("max_steps"), defaults.Search.MaxSteps, errors.CodeInvalidMaxSteps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if maxSteps < 1 || maxSteps > h.maxSteps {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidMaxSteps, "max_steps out of range").
			WithDetails(fmt.Sprintf("max_steps must be between 1 and %d, got %d", h.maxSteps, maxSteps)))
		return
	}
	view := query.Get("view")
	if view == "" {
		view = constants.ViewGeneralized
	}
	if view != constants.ViewGeneralized && view != constants.ViewGrouped && view != constants.ViewSummary {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidInput, "unknown view").
			WithDetails(fmt.Sprintf("view %q is not one of generalized, grouped, summary", view)))
		return
	}
	wantCSV := acceptsCSV(r)
	if wantCSV && view == constants.ViewSummary {
		h.writeError(w, r, errors.NewValidationError(errors.CodeInvalidFormat, "summary view is only available as JSON"))
		return
	}

	t, err := h.loadTable(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.anonymizer.Run(r.Context(), t, columns, k, maxSteps)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if wantCSV {
		var data export.Dataset = result.Generalized
		if view == constants.ViewGrouped {
			data = result.Grouped
			if boolParam(query.Get("suppress")) {
				data = result.Suppressed()
			}
		}
		w.Header().Set(constants.HeaderContentType, constants.ContentTypeCSV)
		w.Header().Set(constants.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", view+".csv"))
		w.WriteHeader(http.StatusOK)
		if err := h.exporter.Export(r.Context(), data, export.FormatCSV, w, export.DefaultExportOptions()); err != nil {
			h.logger.WithError(err).WithField("request_id", getRequestID(r)).Error("Failed to write CSV response")
		}
		return
	}

	response := AnonymizeResponse{Result: result, View: view}
	if view == constants.ViewGeneralized {
		response.Generalized = result.Generalized.Records()
	}
	if view == constants.ViewGrouped && boolParam(query.Get("suppress")) {
		copied := *result
		copied.Grouped = result.Suppressed()
		response.Result = &copied
	}
	h.writeJSON(w, http.StatusOK, response)
}

// Inspect reports the columns of a CSV body and which are numeric.
func (h *Handlers) Inspect(w http.ResponseWriter, r *http.Request) {
	t, err := h.loadTable(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response := InspectResponse{
		Rows:           t.Len(),
		Columns:        make([]ColumnInfo, 0, len(t.Columns())),
		NumericColumns: ingest.NumericColumns(t),
	}
	for _, name := range t.Columns() {
		col, _ := t.Column(name)
		response.Columns = append(response.Columns, ColumnInfo{Name: name, Kind: col.Kind()})
	}
	if response.NumericColumns == nil {
		response.NumericColumns = []string{}
	}
	h.writeJSON(w, http.StatusOK, response)
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.buildInfo.Version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Version reports build information.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.buildInfo)
}

// NotFound answers unknown routes with a JSON error.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, errors.ErrorResponse{
		Error:     errors.NewAppError(errors.ErrorTypeValidation, "NOT_FOUND", "route not found"),
		RequestID: getRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}

func (h *Handlers) loadTable(r *http.Request) (*table.Table, error) {
	loader := ingest.NewCSVLoader(ingest.CSVLoaderOptions{TrimLeadingSpace: true}, h.logger)
	return loader.Load(r.Context(), r.Body)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusOf(err)

	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "request failed")
	}

	log := h.logger.WithError(err).WithFields(logrus.Fields{
		"status":     status,
		"path":       r.URL.Path,
		"request_id": getRequestID(r),
	})
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}

	h.writeJSON(w, status, errors.ErrorResponse{
		Error:     appErr,
		RequestID: getRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	})
}

func splitColumns(raw string) []string {
	var columns []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			columns = append(columns, name)
		}
	}
	return columns
}

func intParam(raw string, fallback int, code string) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(code, "parameter must be an integer").
			WithDetails(fmt.Sprintf("cannot parse %q", raw))
	}
	return v, nil
}

func boolParam(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func acceptsCSV(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get(constants.HeaderAccept), ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mediaType == constants.ContentTypeCSV {
			return true
		}
	}
	return false
}
