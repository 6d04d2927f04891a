package types

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	RequestID    string `json:"request_id"`
	SourceSystem int    `json:"source_system"`
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
}

// RequestHeaders are required on every query. They identify the caller for
// downstream agents and are not used for routing.
type RequestHeaders struct {
	LoginMaskID string
	LoginGender string
	CustMaskID  string
	CustGender  string
	CustAge     int
	DrLicense   string
}

// QueryResponse is the wire envelope. Exactly one of the card fields is set;
// the others serialize as null.
type QueryResponse struct {
	RequestID    string       `json:"request_id"`
	SourceSystem int          `json:"source_system"`
	SessionID    string       `json:"session_id"`
	NextAgent    string       `json:"next_agent"`
	CardType     string       `json:"card_type"`
	CardSubType  string       `json:"card_sub_type"`
	TextCard     *TextCard    `json:"text_card"`
	OptionsCard  *OptionsCard `json:"options_card"`
	JSONCard     *JSONCard    `json:"json_card"`
	ErrorCard    *ErrorCard   `json:"error_card"`
}

type TextCard struct {
	Text string `json:"text"`
}

type OptionsCard struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

type JSONCard struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

type ErrorCard struct {
	Text      string `json:"text"`
	CodeError int    `json:"code_error"`
	ErrorMsg  string `json:"error_msg"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
