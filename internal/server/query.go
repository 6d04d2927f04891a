package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"redirect-agent-backend/internal/types"
)

const (
	headerLoginMaskID = "x-login-mask-id"
	headerLoginGender = "x-login-gender"
	headerCustMaskID  = "x-cust-mask-id"
	headerCustGender  = "x-cust-gender"
	headerCustAge     = "x-cust-age"
	headerDrLicense   = "x-dr-license"
)

var requiredHeaders = []string{
	headerLoginMaskID,
	headerLoginGender,
	headerCustMaskID,
	headerCustGender,
	headerCustAge,
	headerDrLicense,
}

// maxBodyBytes caps the /query body.
const maxBodyBytes = 1 << 20

// queryBody mirrors types.QueryRequest with pointers so missing fields can be
// told apart from zero values.
type queryBody struct {
	RequestID    *string `json:"request_id"`
	SourceSystem *int    `json:"source_system"`
	SessionID    *string `json:"session_id"`
	Query        *string `json:"query"`
}

// validationError is reported as 422.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	headers, err := parseHeaders(r.Header)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	req, err := decodeQuery(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var ve *validationError
		if errors.As(err, &ve) {
			s.writeError(w, http.StatusUnprocessableEntity, ve.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	hlog.FromRequest(r).Debug().
		Str("session_id", req.SessionID).
		Str("cust_mask_id", headers.CustMaskID).
		Int("source_system", req.SourceSystem).
		Msg("query received")

	env, err := s.svc.Handle(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func parseHeaders(h http.Header) (types.RequestHeaders, error) {
	var missing []string
	for _, name := range requiredHeaders {
		if h.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.RequestHeaders{}, fmt.Errorf("missing required headers: %s", strings.Join(missing, ", "))
	}
	age, err := strconv.Atoi(strings.TrimSpace(h.Get(headerCustAge)))
	if err != nil {
		return types.RequestHeaders{}, fmt.Errorf("header %s must be an integer", headerCustAge)
	}
	return types.RequestHeaders{
		LoginMaskID: h.Get(headerLoginMaskID),
		LoginGender: h.Get(headerLoginGender),
		CustMaskID:  h.Get(headerCustMaskID),
		CustGender:  h.Get(headerCustGender),
		CustAge:     age,
		DrLicense:   h.Get(headerDrLicense),
	}, nil
}

// decodeQuery returns a *validationError for missing or mistyped fields and a
// plain error for anything that is not a JSON object.
func decodeQuery(body io.Reader) (types.QueryRequest, error) {
	var b queryBody
	if err := json.NewDecoder(body).Decode(&b); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return types.QueryRequest{}, &validationError{msg: fmt.Sprintf("field %s has the wrong type", te.Field)}
		}
		return types.QueryRequest{}, err
	}

	var missing []string
	if b.RequestID == nil {
		missing = append(missing, "request_id")
	}
	if b.SourceSystem == nil {
		missing = append(missing, "source_system")
	}
	if b.SessionID == nil {
		missing = append(missing, "session_id")
	}
	if b.Query == nil {
		missing = append(missing, "query")
	}
	if len(missing) > 0 {
		return types.QueryRequest{}, &validationError{msg: "missing required fields: " + strings.Join(missing, ", ")}
	}
	if strings.TrimSpace(*b.SessionID) == "" {
		return types.QueryRequest{}, &validationError{msg: "session_id must not be empty"}
	}

	return types.QueryRequest{
		RequestID:    *b.RequestID,
		SourceSystem: *b.SourceSystem,
		SessionID:    *b.SessionID,
		Query:        *b.Query,
	}, nil
}
