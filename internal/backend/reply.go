package backend

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/angeloszaimis/scrape-gateway/internal/scrape"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// reply is the JSON body both protocols carry. status is informational;
// the presence of error decides failure.
type reply struct {
	Status  string  `json:"status,omitempty"`
	Content *string `json:"content"`
	Charset *string `json:"charset,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// DecodeReply parses a backend reply body. It fails closed: anything that is
// not an object with a string error or a string content field is
// KindBackendMalformedResponse.
func DecodeReply(body []byte) (*scrape.Result, error) {
	const op = "backend.decode"

	if len(body) == 0 {
		return nil, scrape.NewError(scrape.KindBackendMalformedResponse, op, errors.New("empty reply"))
	}

	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, scrape.NewError(scrape.KindBackendMalformedResponse, op, err)
	}

	if r.Error != nil {
		return nil, scrape.NewError(scrape.KindBackendReportedError, op, errors.New(*r.Error))
	}

	if r.Content == nil {
		return nil, scrape.NewError(scrape.KindBackendMalformedResponse, op, errors.New("reply has neither content nor error"))
	}

	result := &scrape.Result{Content: []byte(*r.Content)}
	if r.Charset != nil {
		result.Charset = *r.Charset
	}

	return result, nil
}

// EncodeRequest builds the message-protocol request body.
func EncodeRequest(target string) ([]byte, error) {
	return json.Marshal(struct {
		URL string `json:"url"`
	}{URL: target})
}
