package importcsv

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	httptx "github.com/MrJamesThe3rd/grouper/internal/http/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

const maxUploadSize = 10 << 20

type Handler struct {
	importSvc *importer.Service
	ingestSvc *ingest.Service
}

func NewHandler(importSvc *importer.Service, ingestSvc *ingest.Service) *Handler {
	return &Handler{
		importSvc: importSvc,
		ingestSvc: ingestSvc,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/banks", h.banks)
	r.Post("/", h.importCSV)
	r.Post("/confirm", h.confirmImport)
}

type importSuccessResponse struct {
	Imported       int                   `json:"imported"`
	Transactions   []httptx.Response     `json:"transactions"`
	Classification ingest.Classification `json:"classification"`
	CorrelationID  string                `json:"correlation_id,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}

type conflictDTO struct {
	Incoming httptx.ParamsRequest `json:"incoming"`
	Existing httptx.Response      `json:"existing"`
}

type importConflictResponse struct {
	New       []httptx.ParamsRequest `json:"new"`
	Conflicts []conflictDTO          `json:"conflicts"`
}

type confirmRequest struct {
	Params []httptx.ParamsRequest `json:"params"`
}

func (h *Handler) banks(w http.ResponseWriter, _ *http.Request) {
	render.JSON(w, http.StatusOK, h.importSvc.Formats())
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	bank := importer.Bank(r.FormValue("bank"))
	if bank == "" {
		http.Error(w, "bank field is required", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	params, err := h.importSvc.Import(bank, file)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, importer.ErrUnknownBank) {
			status = http.StatusUnprocessableEntity
		}

		http.Error(w, err.Error(), status)
		return
	}

	out, err := h.ingestSvc.Import(r.Context(), userID, params)
	if err != nil {
		render.Error(w, err)
		return
	}

	if out.HasConflicts() {
		resp := importConflictResponse{
			New:       make([]httptx.ParamsRequest, 0, len(out.New)),
			Conflicts: make([]conflictDTO, 0, len(out.Conflicts)),
		}
		for _, p := range out.New {
			resp.New = append(resp.New, httptx.FromParams(p))
		}

		for _, c := range out.Conflicts {
			resp.Conflicts = append(resp.Conflicts, conflictDTO{
				Incoming: httptx.FromParams(c.Incoming),
				Existing: httptx.ToResponse(c.Existing),
			})
		}

		render.JSON(w, http.StatusConflict, resp)

		return
	}

	render.JSON(w, http.StatusCreated, toSuccessResponse(out))
}

func (h *Handler) confirmImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	params := make([]transaction.CreateParams, 0, len(req.Params))
	for _, p := range req.Params {
		cp, err := p.Params()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		params = append(params, cp)
	}

	out, err := h.ingestSvc.Confirm(r.Context(), userID, params)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, toSuccessResponse(out))
}

func toSuccessResponse(out *ingest.Outcome) importSuccessResponse {
	return importSuccessResponse{
		Imported:       len(out.Imported),
		Transactions:   httptx.ToResponseList(out.Imported),
		Classification: out.Classification,
		CorrelationID:  out.CorrelationID,
		Reason:         out.Reason,
	}
}
