package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/erzulfequar/OCR-Backend/pkg/database"
	"github.com/erzulfequar/OCR-Backend/pkg/extraction"
	"github.com/erzulfequar/OCR-Backend/pkg/models"
	"github.com/erzulfequar/OCR-Backend/pkg/ocr"
	"github.com/erzulfequar/OCR-Backend/pkg/parsers"
	"github.com/erzulfequar/OCR-Backend/pkg/synonyms"
)

const maxUploadSize = 32 << 20

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".pdf"}

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// InvoiceStore persists reviewed documents; implemented by database.Store.
type InvoiceStore interface {
	StoreInvoice(ctx context.Context, document, rawRecord []byte, documentName, strategy string) (int, error)
	GetInvoice(ctx context.Context, id int) (*models.StoredInvoice, error)
}

// Handler serves the invoice endpoints. Store may be nil when the server
// runs without a database.
type Handler struct {
	Orchestrator *extraction.Orchestrator
	Store        InvoiceStore
	Table        *synonyms.Table
	UploadDir    string
	CORSOrigins  []string
}

// SetupRoutes configures the HTTP routes for the application
func SetupRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /process-invoice", h.handleProcessInvoice)
	mux.HandleFunc("POST /parse-text", h.handleParseText)
	mux.HandleFunc("POST /normalize", h.handleNormalize)
	mux.HandleFunc("POST /finalize-parsed-fields", h.handleFinalizeParsedFields)
	mux.HandleFunc("GET /invoices/{id}", h.handleGetInvoice)
}

// CORS sets the CORS headers for allowed origins and answers preflight requests
func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && slices.Contains(h.CORSOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
			w.Header().Add("Vary", "Origin")
		}

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleProcessInvoice handles the /process-invoice endpoint
func (h *Handler) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	// Get the file from the request
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error retrieving file: "+err.Error())
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(allowedExtensions, ext) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: please upload JPG, PNG, or PDF", ocr.ErrUnsupportedFormat))
		return
	}

	path, err := h.saveUpload(file, name)
	if err != nil {
		log.WithError(err).WithField("file", name).Error("saving upload failed")
		writeError(w, http.StatusInternalServerError, "Error saving file")
		return
	}

	res, err := h.Orchestrator.Run(r.Context(), extraction.Source{FilePath: path, FileName: name})
	switch {
	case errors.Is(err, extraction.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	case errors.Is(err, extraction.ErrExtraction):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.WithError(err).WithField("file", name).Error("invoice processing failed")
		writeError(w, http.StatusInternalServerError, "Error processing invoice")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"file_name": name,
		"strategy":  res.Strategy,
		"document":  res.Document,
	})
}

// saveUpload copies the upload into the upload directory under a unique name
func (h *Handler) saveUpload(src io.Reader, name string) (string, error) {
	dir := h.UploadDir
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, uuid.New().String()+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

type parseTextRequest struct {
	Text string `json:"text"`
}

// handleParseText runs the rule-based parser on plain text
func (h *Handler) handleParseText(w http.ResponseWriter, r *http.Request) {
	var req parseTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	bill, err := parsers.ParseBill(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := synonyms.Normalize(bill.Raw(), h.Table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"raw":      bill,
		"document": doc,
	})
}

// handleNormalize maps an arbitrary JSON object onto the canonical schema
func (h *Handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading request body")
		return
	}

	doc, err := synonyms.NormalizeJSON(body, h.Table)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"document": doc,
	})
}

// handleFinalizeParsedFields handles the /finalize-parsed-fields endpoint
func (h *Handler) handleFinalizeParsedFields(w http.ResponseWriter, r *http.Request) {
	// Check if database is available
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database connection is not available")
		return
	}

	// Parse the request body
	var req models.FinalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Error parsing request body: "+err.Error())
		return
	}

	// Validate the request
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	// Reviewed documents are normalized again so that stored rows always have the canonical shape
	doc, err := synonyms.NormalizeJSON(req.Document, h.Table)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	document, err := json.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error encoding document")
		return
	}

	id, err := h.Store.StoreInvoice(r.Context(), document, req.Document, req.DocumentName, req.Strategy)
	if err != nil {
		log.WithError(err).WithField("document", req.DocumentName).Error("storing invoice failed")
		writeError(w, http.StatusInternalServerError, "Error storing invoice")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Invoice stored successfully",
		"id":      id,
	})
}

// handleGetInvoice returns a stored invoice
func (h *Handler) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "Database connection is not available")
		return
	}

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		log.WithError(err).WithField("id", id).Error("loading invoice failed")
		writeError(w, http.StatusInternalServerError, "Error loading invoice")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("writing response failed")
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields := make(map[string]string, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		msgs = append(msgs, fe.Field()+" is "+fe.Tag())
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"status": "error",
		"error":  strings.Join(msgs, ", "),
		"fields": fields,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"status": "error",
		"error":  msg,
	})
}
